package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/tailcall-oss/gateway/internal/appcontext"
	"github.com/tailcall-oss/gateway/internal/blueprint"
	"github.com/tailcall-oss/gateway/internal/config"
	"github.com/tailcall-oss/gateway/internal/eventbus"
	"github.com/tailcall-oss/gateway/internal/grpctp"
	"github.com/tailcall-oss/gateway/internal/introspection"
	"github.com/tailcall-oss/gateway/internal/otel"
	"github.com/tailcall-oss/gateway/internal/protoir"
	"github.com/tailcall-oss/gateway/internal/protoreg"
	"github.com/tailcall-oss/gateway/internal/schema"
	"github.com/tailcall-oss/gateway/internal/server"
)

const rootUsage = `tailcall — configuration-driven GraphQL gateway

USAGE:
  tailcall <command> [flags]

COMMANDS:
  start   Run the HTTP GraphQL gateway from one or more ConfigModule files
  check   Validate ConfigModule files without serving
  init    Scaffold a starter ConfigModule file
  gen     Generate SDL or .proto output
  help    Show help for any command
`

const startUsage = `start FLAGS:
  <config.yaml> [config2.yaml ...]     ConfigModule files to load and merge,
                                        later files winning on name collision
  -server.addr <addr>                  HTTP listen address (default: :8080)
  -server.pretty                       Pretty-print JSON responses
  -server.timeout <duration>           Per-request timeout (default: 10s)
  -server.metadata-header <name>       Forward HTTP header to gRPC metadata.
                                        Repeatable
  -server.graphiql                     Serve the GraphiQL IDE (default: true)
  -server.cors <origin>                Allow an Access-Control-Allow-Origin.
                                        Repeatable
  -graphql.introspection               Enable __schema/__type (default: true)
  -grpc.descriptorset <file>           Compiled FileDescriptorSet, required
                                        when any field carries @grpc
  -grpc.backend <Svc=host:port>        Map a gRPC service to an endpoint.
                                        Repeatable; wildcard with *=host:port
  -grpc.max-conns-per-endpoint N       Max TCP conns per endpoint (default: 2)
  -grpc.rpc-timeout <duration>         RPC timeout (default: 3s)
  -otel.endpoint <addr>                OTLP collector endpoint
  -otel.service <name>                 OpenTelemetry service name (default: tailcall)
`

const checkUsage = `check FLAGS:
  <config.yaml> [config2.yaml ...]   ConfigModule files to load, merge and compile
  (exits non-zero and prints every validation failure on error)
`

const initUsage = `init FLAGS:
  -out <file>   Write the starter ConfigModule to file (default: stdout)
`

const genUsage = `gen FLAGS:
  sdl <config.yaml...> [-out file]                     Render merged config's SDL
  sdl -graphql.root <dir> -graphql.rootpkg <name> [-out file]
                                                        Render SDL from a
                                                        protoir project instead
  proto -graphql.root <dir> -graphql.rootpkg <name> -out <dir>
                                                        Generate .proto files
                                                        from a protoir project
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("tailcall", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer))
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "start":
		return cmdStart(cmdArgs)
	case "check":
		return cmdCheck(cmdArgs)
	case "init":
		return cmdInit(cmdArgs)
	case "gen":
		return cmdGen(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "start":
		fmt.Print(startUsage)
	case "check":
		fmt.Print(checkUsage)
	case "init":
		fmt.Print(initUsage)
	case "gen":
		fmt.Print(genUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type backendFlag struct {
	m map[string][]string
}

func (b *backendFlag) String() string { return "" }

func (b *backendFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid backend %q", v)
	}
	svc := strings.TrimSpace(parts[0])
	ep := strings.TrimSpace(parts[1])
	if svc == "" || ep == "" {
		return fmt.Errorf("invalid backend %q", v)
	}
	if b.m == nil {
		b.m = map[string][]string{}
	}
	b.m[svc] = append(b.m[svc], ep)
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// loadAndMergeConfigs reads and merges every named ConfigModule file, later
// files winning on name collision per config.Merge.
func loadAndMergeConfigs(paths []string) (*config.Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one config file is required")
	}
	cfgs := make([]*config.Config, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		cfg, err := config.FromYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return config.Merge(cfgs...), nil
}

// loadDescriptorSet reads a compiled google.protobuf.FileDescriptorSet and
// returns the file descriptors within, resolved against each other so
// cross-file type references work the same as when grpcrt.New is handed
// descriptors straight out of protoreg.Build's in-process registry.
func loadDescriptorSet(path string) ([]protoreflect.FileDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor set: %w", err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode descriptor set: %w", err)
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("resolve descriptor set: %w", err)
	}
	var out []protoreflect.FileDescriptor
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		out = append(out, fd)
		return true
	})
	return out, nil
}

func cmdStart(args []string) error {
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	graphiql := true
	enableIntrospection := true
	descriptorSet := ""
	maxConns := 2
	rpcTimeout := 3 * time.Second
	otelEndpoint := ""
	otelService := "tailcall"
	var metadataHeaders stringListFlag
	var corsOrigins stringListFlag
	var bf backendFlag

	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Var(&metadataHeaders, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	fs.Var(&corsOrigins, "server.cors", "Allow an Access-Control-Allow-Origin")
	fs.BoolVar(&graphiql, "server.graphiql", graphiql, "Serve the GraphiQL IDE")
	fs.BoolVar(&enableIntrospection, "graphql.introspection", enableIntrospection, "Enable GraphQL introspection")
	fs.StringVar(&descriptorSet, "grpc.descriptorset", descriptorSet, "Compiled FileDescriptorSet for @grpc fields")
	fs.Var(&bf, "grpc.backend", "Map gRPC service to endpoint")
	fs.IntVar(&maxConns, "grpc.max-conns-per-endpoint", maxConns, "Max conns per endpoint")
	fs.DurationVar(&rpcTimeout, "grpc.rpc-timeout", rpcTimeout, "RPC timeout")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, startUsage)
		return err
	}
	configPaths := fs.Args()

	cfg, err := loadAndMergeConfigs(configPaths)
	if err != nil {
		fmt.Fprint(os.Stderr, startUsage)
		return err
	}

	bp, err := blueprint.Compile(cfg)
	if err != nil {
		return fmt.Errorf("compile config: %w", err)
	}

	if enableIntrospection {
		bp.Schema = introspection.ExtendSchema(bp.Schema)
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	acOpts := appcontext.Options{}
	if descriptorSet != "" {
		files, err := loadDescriptorSet(descriptorSet)
		if err != nil {
			return err
		}
		providers := map[string][]string{}
		wildcard := bf.m["*"]
		for _, fd := range files {
			for i := range fd.Services().Len() {
				fn := string(fd.Services().Get(i).FullName())
				eps := bf.m[fn]
				if len(eps) == 0 {
					eps = wildcard
				}
				if len(eps) == 0 {
					return fmt.Errorf("no backend mapping for %s", fn)
				}
				providers[fn] = eps
			}
		}
		trOpts := []grpctp.Option{
			grpctp.WithProvider(grpctp.NewStaticEndpoints(providers)),
			grpctp.WithMaxConnsPerEndpoint(maxConns),
		}
		if rpcTimeout > 0 {
			trOpts = append(trOpts, grpctp.WithRPCTimeout(rpcTimeout))
		}
		acOpts.GrpcFiles = files
		acOpts.GrpcTransport = grpctp.New(trOpts...)
	}

	ac := appcontext.New(bp, acOpts)
	defer ac.Close()

	var sopts []server.Option
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(metadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(metadataHeaders...))
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	sopts = append(sopts, server.WithGraphiQL(graphiql))

	h, err := server.New(ac, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	mux.Handle("/", h)

	listenAddr := addr
	if bp.Server.Port != 0 {
		listenAddr = fmt.Sprintf(":%d", bp.Server.Port)
	}
	log.Printf("GraphQL server listening on %s", listenAddr)
	return http.ListenAndServe(listenAddr, mux)
}

func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, checkUsage)
		return err
	}

	cfg, err := loadAndMergeConfigs(fs.Args())
	if err != nil {
		fmt.Fprint(os.Stderr, checkUsage)
		return err
	}

	if _, err := blueprint.Compile(cfg); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

const starterConfig = `schema:
  query: Query

types:
  Query:
    fields:
      hello:
        type: String
        http:
          baseURL: https://example.com
          path: /hello
          method: GET

server:
  port: 8080
`

func cmdInit(args []string) error {
	outFile := ""
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write the starter ConfigModule to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, initUsage)
		return err
	}
	if outFile == "" {
		fmt.Print(starterConfig)
		return nil
	}
	return os.WriteFile(outFile, []byte(starterConfig), 0644)
}

func cmdGen(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, genUsage)
		return fmt.Errorf("missing gen subcommand")
	}
	switch args[0] {
	case "sdl":
		return cmdGenSDL(args[1:])
	case "proto":
		return cmdGenProto(args[1:])
	default:
		fmt.Fprint(os.Stderr, genUsage)
		return fmt.Errorf("unknown gen subcommand %q", args[0])
	}
}

func cmdGenSDL(args []string) error {
	outFile := ""
	rootDir := ""
	rootPkg := ""
	fs := flag.NewFlagSet("gen sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write rendered SDL to file")
	fs.StringVar(&rootDir, "graphql.root", rootDir, "protoir project root (alternate input)")
	fs.StringVar(&rootPkg, "graphql.rootpkg", rootPkg, "protoir root package (alternate input)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, genUsage)
		return err
	}

	var sch *schema.Schema
	if rootPkg != "" {
		proj, err := protoir.Load(rootDir, rootPkg)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		sch, err = schema.BuildFromIR(proj)
		if err != nil {
			return fmt.Errorf("build schema: %w", err)
		}
	} else {
		cfg, err := loadAndMergeConfigs(fs.Args())
		if err != nil {
			fmt.Fprint(os.Stderr, genUsage)
			return err
		}
		bp, err := blueprint.Compile(cfg)
		if err != nil {
			return fmt.Errorf("compile config: %w", err)
		}
		sch = bp.Schema
	}

	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Print(sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

// cmdGenProto keeps the protoir/protoreg path alive for projects still
// described as a Go package tree of resolver/loader definitions rather than
// a ConfigModule YAML file — the input protoir.Load and protoreg.Build
// understand predates ConfigModule and is unrelated to it.
func cmdGenProto(args []string) error {
	rootDir := "."
	rootPkg := ""
	outDir := ""
	fs := flag.NewFlagSet("gen proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&rootDir, "graphql.root", rootDir, "GraphQL project root")
	fs.StringVar(&rootPkg, "graphql.rootpkg", rootPkg, "GraphQL root package")
	fs.StringVar(&outDir, "out", outDir, "Output directory for generated .proto files")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, genUsage)
		return err
	}
	if rootPkg == "" {
		fmt.Fprint(os.Stderr, genUsage)
		return fmt.Errorf("-graphql.rootpkg is required")
	}
	if outDir == "" {
		return fmt.Errorf("-out is required")
	}

	proj, err := protoir.Load(rootDir, rootPkg)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	reg, err := protoreg.Build(proj)
	if err != nil {
		return fmt.Errorf("protoreg build: %w", err)
	}
	if err := protoreg.Render(reg, outDir); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}
