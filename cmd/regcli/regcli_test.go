package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-oidfed/registrar/registry"
	"github.com/go-oidfed/registrar/storage/model"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	data := fmt.Sprintf(
		`
federation:
  entity_id: https://cli.fed.example.com
storage:
  data_dir: %s
`, dir,
	)
	if err := os.WriteFile(file, []byte(data), 0o600); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	return file
}

func run(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"-c", config}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRules(t *testing.T) {
	config := writeConfig(t)
	if _, err := run(
		t, config, "rules", "create", "--name", "https_only", "--field-path", "entity_id",
		"--type", "regex", "--value", "^https://",
	); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := run(
		t, config, "rules", "create", "--name", "broken", "--field-path", "entity_id",
		"--type", "regex", "--value", "([",
	); err == nil {
		t.Error("expected an error for an invalid regex")
	}
	out, err := run(t, config, "rules", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var rules []model.ValidationRule
	if err = json.Unmarshal([]byte(out), &rules); err != nil {
		t.Fatalf("invalid list output %q: %v", out, err)
	}
	if len(rules) != 1 || rules[0].RuleName != "https_only" || rules[0].EntityType != model.RuleEntityTypeBoth {
		t.Fatalf("unexpected rules %+v", rules)
	}
	if _, err = run(t, config, "rules", "delete", fmt.Sprint(rules[0].ID)); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err = run(t, config, "rules", "delete", "abc"); err == nil {
		t.Error("expected an error for an invalid id")
	}
}

func TestEntitiesSetStatus(t *testing.T) {
	config := writeConfig(t)
	if _, err := run(t, config, "entities", "list"); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := reg.Registry().Register(
		registry.Registration{
			EntityID:   "https://op.example.com",
			EntityType: model.EntityTypeOP,
		},
	); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.Registry().Activate("https://op.example.com"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := run(t, config, "entities", "set-status", "https://op.example.com", "suspended"); err != nil {
		t.Fatalf("set-status failed: %v", err)
	}
	out, err := run(t, config, "entities", "list", "--status", "suspended")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var summaries []model.EntitySummary
	if err = json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("invalid list output %q: %v", out, err)
	}
	if len(summaries) != 1 || summaries[0].Status != model.StatusSuspended {
		t.Errorf("unexpected entities %+v", summaries)
	}
	if _, err = run(t, config, "entities", "set-status", "https://op.example.com", "pending"); err == nil {
		t.Error("expected an error for an invalid transition")
	}
	if _, err = run(t, config, "entities", "set-status", "https://op.example.com", "gone"); err == nil {
		t.Error("expected an error for an unknown status")
	}
}

func TestKeysRotate(t *testing.T) {
	config := writeConfig(t)
	if _, err := run(t, config, "keys", "rotate"); err != nil {
		t.Fatalf("first rotate failed: %v", err)
	}
	if _, err := run(t, config, "keys", "rotate"); err != nil {
		t.Fatalf("second rotate failed: %v", err)
	}
	out, err := run(t, config, "keys", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var infos []keyInfo
	if err = json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("invalid list output %q: %v", out, err)
	}
	active := 0
	for _, k := range infos {
		if k.Active {
			active++
		}
	}
	if len(infos) < 2 || active != 1 {
		t.Errorf("expected retained keys and exactly one active key, got %+v", infos)
	}
}

func TestUsers(t *testing.T) {
	config := writeConfig(t)
	if _, err := run(t, config, "users", "create", "admin"); err == nil {
		t.Error("expected an error without a password")
	}
	if _, err := run(t, config, "users", "create", "admin", "-p", "secret"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	out, err := run(t, config, "users", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var users []model.User
	if err = json.Unmarshal([]byte(out), &users); err != nil || len(users) != 1 {
		t.Fatalf("unexpected users output %q: %v", out, err)
	}
	if _, err = run(t, config, "users", "delete", "admin"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}
