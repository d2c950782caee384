package config

import (
	"github.com/go-oidfed/registrar"
)

// Endpoints holds configuration for the federation endpoints; unset paths
// fall back to the registrar defaults
type Endpoints struct {
	Fetch    registrar.EndpointConf `yaml:"fetch"`
	List     registrar.EndpointConf `yaml:"list"`
	Register registrar.EndpointConf `yaml:"register"`
}

func (e *Endpoints) resolve(entityID string) {
	for _, ep := range []struct {
		conf *registrar.EndpointConf
		path string
	}{
		{&e.Fetch, registrar.DefaultFetchPath},
		{&e.List, registrar.DefaultListPath},
		{&e.Register, registrar.DefaultRegisterPath},
	} {
		if ep.conf.Path == "" {
			ep.conf.Path = ep.path
		}
		ep.conf.ValidateURL(entityID)
	}
}

// RegistrarEndpoints returns the endpoints in the form the registrar
// expects
func (e Endpoints) RegistrarEndpoints() registrar.Endpoints {
	return registrar.Endpoints{
		Fetch:    e.Fetch,
		List:     e.List,
		Register: e.Register,
	}
}
