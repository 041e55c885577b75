package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromYAML decodes a ConfigModule document. Parsing failures are reported as
// a plain error here (not a valid.Valid) — structural decoding is a syntax
// concern, not the exhaustive semantic validation the blueprint compiler
// performs afterwards.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if cfg.Types == nil {
		cfg.Types = map[string]*Type{}
	}
	if cfg.Enums == nil {
		cfg.Enums = map[string]*Enum{}
	}
	if cfg.Unions == nil {
		cfg.Unions = map[string]*Union{}
	}
	return &cfg, nil
}

// Merge layers configs in order, returning a new Config. A later document's
// type replaces an earlier type of the same name as a whole, matching the
// "links" merge order config surfaces (§6) imply.
func Merge(configs ...*Config) *Config {
	out := &Config{
		Types:  map[string]*Type{},
		Enums:  map[string]*Enum{},
		Unions: map[string]*Union{},
	}
	for _, c := range configs {
		if c == nil {
			continue
		}
		if c.Schema.Query != "" {
			out.Schema.Query = c.Schema.Query
		}
		if c.Schema.Mutation != "" {
			out.Schema.Mutation = c.Schema.Mutation
		}
		for name, t := range c.Types {
			out.Types[name] = t
		}
		for name, e := range c.Enums {
			out.Enums[name] = e
		}
		for name, u := range c.Unions {
			out.Unions[name] = u
		}
		if c.Server.Port != 0 {
			out.Server = c.Server
		}
		if c.Upstream.BaseURL != "" || c.Upstream.Batch != nil {
			out.Upstream = c.Upstream
		}
		if c.Telemetry.Export != "" {
			out.Telemetry = c.Telemetry
		}
		if c.Auth != nil {
			out.Auth = c.Auth
		}
		out.Links = append(out.Links, c.Links...)
	}
	return out
}
