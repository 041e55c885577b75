// Package config holds the declarative ConfigModule data model: the
// operator-facing surface of types, fields, resolver directives, and
// upstream/server options that the blueprint compiler lowers into an
// executable Blueprint.
package config

// Config is one decoded ConfigModule document.
type Config struct {
	Schema    SchemaConfig        `yaml:"schema"`
	Types     map[string]*Type    `yaml:"types"`
	Enums     map[string]*Enum    `yaml:"enums"`
	Unions    map[string]*Union   `yaml:"unions"`
	Server    ServerConfig        `yaml:"server"`
	Upstream  UpstreamConfig      `yaml:"upstream"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
	Auth      *AuthConfig         `yaml:"auth"`
	Links     []Link              `yaml:"links"`
}

// SchemaConfig names the root operation types.
type SchemaConfig struct {
	Query    string `yaml:"query"`
	Mutation string `yaml:"mutation"`
}

// Type is a named object/interface type and its fields.
type Type struct {
	Fields     map[string]*Field `yaml:"fields"`
	Implements []string          `yaml:"implements"`
	Interface  bool              `yaml:"interface"`
}

// Enum is a GraphQL enum type.
type Enum struct {
	Values []string `yaml:"values"`
}

// Union is a GraphQL union type.
type Union struct {
	Types []string `yaml:"types"`
}

// Field is one field on a Type, carrying at most one resolver directive.
type Field struct {
	Type     string           `yaml:"type"`
	List     bool             `yaml:"list"`
	NonNull  bool             `yaml:"nonNull"`
	Args     map[string]*Arg  `yaml:"args"`
	Http     *Http            `yaml:"http"`
	Grpc     *Grpc            `yaml:"grpc"`
	GraphQL  *GraphQL         `yaml:"graphQL"`
	Expr     *Expr            `yaml:"expr"`
	JS       *JS              `yaml:"js"`
	Call     *Call            `yaml:"call"`
	Protected bool            `yaml:"protected"`
	Cache    *Cache           `yaml:"cache"`
	Omit     bool             `yaml:"omit"`
	AddField *AddField        `yaml:"addField"`
}

// Arg is a field argument declaration.
type Arg struct {
	Type    string `yaml:"type"`
	List    bool   `yaml:"list"`
	NonNull bool   `yaml:"nonNull"`
}

// KeyValue is a (key, mustache-template value) pair, used for headers and
// query parameters.
type KeyValue struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Http is the @http directive's configuration.
type Http struct {
	Path      string     `yaml:"path"`
	Method    string     `yaml:"method"`
	BaseURL   string     `yaml:"baseURL"`
	Query     []KeyValue `yaml:"query"`
	Headers   []KeyValue `yaml:"headers"`
	Body      string     `yaml:"body"`
	BatchKey  []string   `yaml:"batchKey"`
	Encoding  string     `yaml:"encoding"`
	OnRequest string     `yaml:"onRequest"`
}

// Grpc is the @grpc directive's configuration.
type Grpc struct {
	Service   string     `yaml:"service"`
	Method    string     `yaml:"method"`
	BaseURL   string     `yaml:"baseURL"`
	Body      string     `yaml:"body"`
	Headers   []KeyValue `yaml:"headers"`
	BatchKey  []string   `yaml:"batchKey"`
}

// GraphQL is the @graphQL directive's configuration.
type GraphQL struct {
	Name    string     `yaml:"name"`
	Args    []KeyValue `yaml:"args"`
	Headers []KeyValue `yaml:"headers"`
	Batch   bool       `yaml:"batch"`
	BaseURL string     `yaml:"baseURL"`
}

// Expr is the @expr directive's configuration: an inline dynamic IR body.
type Expr struct {
	Body any `yaml:"body"`
}

// JS is the @js directive's configuration.
type JS struct {
	Name string `yaml:"name"`
}

// Call is the @call directive's configuration: a pipeline of steps.
type Call struct {
	Steps []CallStep `yaml:"steps"`
}

// CallStep names one field to invoke, passing the listed arg mapping.
type CallStep struct {
	Query string            `yaml:"query"`
	Args  map[string]string `yaml:"args"`
}

// Cache is the @cache directive's configuration.
type Cache struct {
	MaxAge int `yaml:"maxAge"`
}

// AddField is the @addField directive's configuration: hoists a nested
// path up as a sibling field on the parent type.
type AddField struct {
	Name string   `yaml:"name"`
	Path []string `yaml:"path"`
}

// ServerConfig is the "server.*" option surface.
type ServerConfig struct {
	Port                int  `yaml:"port"`
	EnableBatchRequests bool `yaml:"enableBatchRequests"`
	PipelineFlush       bool `yaml:"pipelineFlush"`
	Dedupe              bool `yaml:"dedupe"`
	Workers             int  `yaml:"workers"`
}

// UpstreamConfig is the "upstream.*" option surface.
type UpstreamConfig struct {
	BaseURL   string   `yaml:"baseURL"`
	Batch     *Batch   `yaml:"batch"`
	OnRequest string   `yaml:"onRequest"`
}

// Batch is the data-loader pacing configuration ("upstream.batch.*").
type Batch struct {
	Delay   int      `yaml:"delay"`
	MaxSize int      `yaml:"maxSize"`
	Headers []string `yaml:"headers"`
}

// GetDelay returns the configured batch delay, or 0 when batching is unset.
func (u UpstreamConfig) GetDelay() int {
	if u.Batch == nil {
		return 0
	}
	return u.Batch.Delay
}

// GetMaxSize returns the configured batch max size, or 0 when unset.
func (u UpstreamConfig) GetMaxSize() int {
	if u.Batch == nil {
		return 0
	}
	return u.Batch.MaxSize
}

// TelemetryConfig is the @telemetry export configuration.
type TelemetryConfig struct {
	Export          string   `yaml:"export"`
	RequestHeaders  []string `yaml:"requestHeaders"`
}

// AuthConfig is the single auth mechanism @protected fields are verified
// against; exactly one of JWT/Basic is expected to be set.
type AuthConfig struct {
	JWT   *JWTAuth   `yaml:"jwt"`
	Basic *BasicAuth `yaml:"basic"`
}

// JWTAuth verifies a bearer token's signature (HMAC) and, if set, issuer.
type JWTAuth struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// BasicAuth checks an inbound "Authorization: Basic ..." header against a
// single configured username/password pair.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Link references an external resource merged into this config (e.g. a
// .proto file or another config fragment).
type Link struct {
	Src  string `yaml:"src"`
	Type string `yaml:"type"`
}

// FindType looks up a type by name, returning nil when absent.
func (c *Config) FindType(name string) *Type {
	if c == nil {
		return nil
	}
	return c.Types[name]
}

// IsScalar reports whether name is not a user-defined Type (so it is either
// a builtin scalar or otherwise opaque to field-resolvability checks).
func (c *Config) IsScalar(name string) bool {
	if c == nil {
		return true
	}
	_, isType := c.Types[name]
	_, isEnum := c.Enums[name]
	return !isType && !isEnum
}

// HasResolver reports whether the field declares exactly the kind of
// resolver directive that makes it independently resolvable (i.e. it does
// not need to fall back to a nested-field walk).
func (f *Field) HasResolver() bool {
	return f.Http != nil || f.Grpc != nil || f.GraphQL != nil || f.Expr != nil || f.JS != nil || f.Call != nil
}
