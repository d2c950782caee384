package config

import (
	"net/url"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-oidfed/registrar/internal/utils"
)

// federationConf describes this federation. Keys other than the known ones
// are published as additional federation_entity metadata, e.g.
//
//	federation:
//	  entity_id: https://fed.example.com
//	  organization_name: Example Federation
//	  contacts:
//	    - admin@example.com
//	  homepage_uri: https://example.com
type federationConf struct {
	EntityID         string         `yaml:"entity_id"`
	OrganizationName string         `yaml:"organization_name"`
	Extra            map[string]any `yaml:"-"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (f *federationConf) UnmarshalYAML(node *yaml.Node) error {
	type plain federationConf
	var known plain
	if err := node.Decode(&known); err != nil {
		return errors.WithStack(err)
	}
	extra := make(map[string]any)
	if err := node.Decode(&extra); err != nil {
		return errors.WithStack(err)
	}
	for _, tag := range utils.FieldTagNames(structs.New(known).Fields(), "yaml") {
		delete(extra, tag)
	}
	if len(extra) == 0 {
		extra = nil
	}
	*f = federationConf(known)
	f.Extra = extra
	return nil
}

func (f *federationConf) validate() error {
	if f.EntityID == "" {
		return errors.New("entity_id must be set")
	}
	u, err := url.Parse(f.EntityID)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("entity_id '%s' is not a valid url", f.EntityID)
	}
	return nil
}
