package grpcrt

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tailcall-oss/gateway/internal/ir"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Runtime implements the gRPC slice of ir.Resolvers. Unlike the old
// resolver/loader-suffix bridge, it never inspects Registry conventions: the
// service and method to call come straight off the compiled @grpc template,
// and Files is just the set of descriptors FindMethod searches to resolve
// them against the actual upstream service.
type Runtime struct {
	Files     []protoreflect.FileDescriptor
	Transport Transport
}

// New constructs a Runtime over a fixed set of upstream service descriptors.
func New(files []protoreflect.FileDescriptor, transport Transport) *Runtime {
	return &Runtime{Files: files, Transport: transport}
}

// ResolveGrpc implements ir.Resolvers.
func (rt *Runtime) ResolveGrpc(ctx *ir.EvalContext, leaf *ir.GrpcIO) (any, error) {
	rendered, err := leaf.Template.Render(ctx)
	if err != nil {
		return nil, fmt.Errorf("grpcrt: rendering call: %w", err)
	}

	method, err := FindMethod(rt.Files, rendered.Service, rendered.Method)
	if err != nil {
		return nil, err
	}

	var body map[string]any
	if len(rendered.Body) > 0 {
		if err := json.Unmarshal(rendered.Body, &body); err != nil {
			return nil, fmt.Errorf("grpcrt: decoding call body: %w", err)
		}
	}

	return Invoke(ctx, rt.Transport, method, body)
}

// FindMethod locates service.method among files, searching every file's
// service list by full name and, within the matching service, its method
// list by plain name.
func FindMethod(files []protoreflect.FileDescriptor, service, method string) (protoreflect.MethodDescriptor, error) {
	for _, fd := range files {
		services := fd.Services()
		for i := 0; i < services.Len(); i++ {
			sd := services.Get(i)
			if string(sd.FullName()) != service {
				continue
			}
			md := sd.Methods().ByName(protoreflect.Name(method))
			if md == nil {
				return nil, fmt.Errorf("grpcrt: service %s has no method %q", service, method)
			}
			return md, nil
		}
	}
	return nil, fmt.Errorf("grpcrt: no service descriptor for %q", service)
}

// Invoke builds method's input message from body, dispatches it through
// transport, and decodes the response back into a plain Go value.
func Invoke(ctx *ir.EvalContext, transport Transport, method protoreflect.MethodDescriptor, body map[string]any) (any, error) {
	req := dynamicpb.NewMessage(method.Input())
	if err := setMessageFieldsByJSON(req, body); err != nil {
		return nil, fmt.Errorf("grpcrt: building request for %s: %w", method.FullName(), err)
	}

	resp, err := transport.Call(ctx.Context, method, req)
	if err != nil {
		return nil, fmt.Errorf("grpcrt: calling %s: %w", method.FullName(), err)
	}
	if resp == nil {
		return nil, nil
	}
	return decodeMessage(resp), nil
}

// decodeMessage converts a whole response message into a map[string]any
// keyed by JSON field name, independent of any particular envelope shape --
// the @grpc directive's caller addresses into the result with @addField
// paths, not a fixed "data" unwrap.
func decodeMessage(msg protoreflect.Message) map[string]any {
	out := map[string]any{}
	fields := msg.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Cardinality() != protoreflect.Repeated && !msg.Has(fd) {
			continue
		}
		out[string(fd.JSONName())] = decodeValue(fd, msg.Get(fd))
	}
	return out
}

// decodeValue converts a single field's value to a plain Go value: scalars
// map directly, repeated fields become slices, and message-kind fields
// recurse through decodeMessage.
func decodeValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	if fd.Cardinality() == protoreflect.Repeated {
		list := v.List()
		out := make([]any, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			out = append(out, decodeScalarOrMessage(fd, list.Get(i)))
		}
		return out
	}
	return decodeScalarOrMessage(fd, v)
}

func decodeScalarOrMessage(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return int64(v.Int())
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return uint64(v.Uint())
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return []byte(v.Bytes())
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return decodeMessage(v.Message())
	default:
		return nil
	}
}

func setMessageFieldsByJSON(msg protoreflect.Message, data map[string]any) error {
	if data == nil {
		return nil
	}
	fields := msg.Descriptor().Fields()
	byJSON := make(map[string]protoreflect.FieldDescriptor, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		f := fields.Get(i)
		byJSON[string(f.JSONName())] = f
	}
	for k, v := range data {
		fd := byJSON[k]
		if fd == nil {
			continue
		}
		if fd.Cardinality() == protoreflect.Repeated {
			list := msg.Mutable(fd).List()
			switch vv := v.(type) {
			case []any:
				for _, it := range vv {
					pv, err := toProtoScalarOrMessage(fd, it)
					if err != nil {
						return err
					}
					list.Append(pv)
				}
			default:
				return fmt.Errorf("unsupported repeated arg type for %s", fd.JSONName())
			}
			msg.Set(fd, protoreflect.ValueOfList(list))
			continue
		}
		val, err := toProtoScalarOrMessage(fd, v)
		if err != nil {
			return err
		}
		msg.Set(fd, val)
	}
	return nil
}

func toProtoScalarOrMessage(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := v.(float64); ok {
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := v.(float64); ok {
			return protoreflect.ValueOfInt64(int64(n)), nil
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return protoreflect.ValueOfInt64(n), nil
			}
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := v.(float64); ok {
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := v.(float64); ok {
			return protoreflect.ValueOfUint64(uint64(n)), nil
		}
	case protoreflect.FloatKind:
		if n, ok := v.(float64); ok {
			return protoreflect.ValueOfFloat32(float32(n)), nil
		}
	case protoreflect.DoubleKind:
		if n, ok := v.(float64); ok {
			return protoreflect.ValueOfFloat64(n), nil
		}
	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfBytes([]byte(s)), nil
		}
	case protoreflect.EnumKind:
		if s, ok := v.(string); ok {
			if val := fd.Enum().Values().ByName(protoreflect.Name(s)); val != nil {
				return protoreflect.ValueOfEnum(val.Number()), nil
			}
		}
	case protoreflect.MessageKind:
		if mv, ok := v.(map[string]any); ok {
			msg := dynamicpb.NewMessage(fd.Message())
			if err := setMessageFieldsByJSON(msg, mv); err != nil {
				return protoreflect.Value{}, err
			}
			return protoreflect.ValueOfMessage(msg), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("unsupported arg type %T for %s", v, fd.JSONName())
}
