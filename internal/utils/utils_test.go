package utils

import (
	"reflect"
	"testing"

	"github.com/fatih/structs"
)

func TestMergeMaps(t *testing.T) {
	base := map[string]any{
		"organization_name": "Base",
		"contacts":          []any{"a@example.org"},
		"nested":            map[string]any{"a": 1, "b": 2},
	}
	overlay := map[string]any{
		"organization_name": "Overlay",
		"nested":            map[string]any{"b": 3},
	}
	got := MergeMaps(true, base, overlay)
	expected := map[string]any{
		"organization_name": "Overlay",
		"contacts":          []any{"a@example.org"},
		"nested":            map[string]any{"a": 1, "b": 3},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	got = MergeMaps(false, base, overlay)
	if got["organization_name"] != "Base" {
		t.Errorf("expected first value to be kept, got %v", got["organization_name"])
	}
	if base["organization_name"] != "Base" {
		t.Error("input map was modified")
	}
}

func TestFieldTagNames(t *testing.T) {
	type conf struct {
		EntityID string `yaml:"entity_id"`
		Name     string `yaml:"organization_name,omitempty"`
		Internal string `yaml:"-"`
		Untagged string
	}
	got := FieldTagNames(structs.New(conf{}).Fields(), "yaml")
	expected := []string{"entity_id", "organization_name"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}
