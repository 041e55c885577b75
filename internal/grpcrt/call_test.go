package grpcrt_test

import (
	"context"
	"testing"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/tailcall-oss/gateway/internal/grpcrt"
	"github.com/tailcall-oss/gateway/internal/ir"
	"github.com/tailcall-oss/gateway/internal/reqtemplate"
)

func mustGrpcTemplate(t *testing.T) *reqtemplate.Grpc {
	t.Helper()
	tpl, err := reqtemplate.NewGrpc("grpc://upstream.example.com:9000", "user.UserService", "GetUser", `{"id": "{{.args.id}}"}`, nil)
	require.NoError(t, err)
	return tpl
}

// buildUserService assembles a one-service, one-method file descriptor
// equivalent to:
//
//	service UserService { rpc GetUser(GetUserRequest) returns (GetUserResponse); }
//	message GetUserRequest { string id = 1; }
//	message GetUserResponse { string id = 1; string name = 2; }
func buildUserService(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()

	reqMB := protobuilder.NewMessage("GetUserRequest")
	reqID := protobuilder.NewField("id", protobuilder.FieldTypeScalar(protoreflect.StringKind))
	reqID.SetNumber(1)
	reqMB.AddField(reqID)

	respMB := protobuilder.NewMessage("GetUserResponse")
	respID := protobuilder.NewField("id", protobuilder.FieldTypeScalar(protoreflect.StringKind))
	respID.SetNumber(1)
	respMB.AddField(respID)
	respName := protobuilder.NewField("name", protobuilder.FieldTypeScalar(protoreflect.StringKind))
	respName.SetNumber(2)
	respMB.AddField(respName)

	sb := protobuilder.NewService("UserService")
	sb.AddMethod(protobuilder.NewMethod("GetUser", protobuilder.RpcTypeMessage(reqMB, false), protobuilder.RpcTypeMessage(respMB, false)))

	fb := protobuilder.NewFile("user.proto")
	fb.SetPackageName(protoreflect.FullName("user"))
	fb.SetSyntax(protoreflect.Proto3)
	fb.AddMessage(reqMB)
	fb.AddMessage(respMB)
	fb.AddService(sb)

	fd, err := fb.Build()
	require.NoError(t, err)
	return fd
}

func TestFindMethodLocatesServiceAndMethod(t *testing.T) {
	fd := buildUserService(t)

	md, err := grpcrt.FindMethod([]protoreflect.FileDescriptor{fd}, "user.UserService", "GetUser")
	require.NoError(t, err)
	require.Equal(t, protoreflect.Name("GetUser"), md.Name())
}

func TestFindMethodReportsUnknownService(t *testing.T) {
	fd := buildUserService(t)

	_, err := grpcrt.FindMethod([]protoreflect.FileDescriptor{fd}, "user.MissingService", "GetUser")
	require.ErrorContains(t, err, "no service descriptor")
}

func TestFindMethodReportsUnknownMethod(t *testing.T) {
	fd := buildUserService(t)

	_, err := grpcrt.FindMethod([]protoreflect.FileDescriptor{fd}, "user.UserService", "DeleteUser")
	require.ErrorContains(t, err, "no method")
}

func TestInvokeBuildsRequestAndDecodesResponse(t *testing.T) {
	fd := buildUserService(t)
	md, err := grpcrt.FindMethod([]protoreflect.FileDescriptor{fd}, "user.UserService", "GetUser")
	require.NoError(t, err)

	respMsg := dynamicpb.NewMessage(md.Output())
	respMsg.Set(respMsg.Descriptor().Fields().ByName("id"), protoreflect.ValueOfString("7"))
	respMsg.Set(respMsg.Descriptor().Fields().ByName("name"), protoreflect.ValueOfString("rex"))

	transport := grpcrt.NewMockTransport(respMsg)

	v, err := grpcrt.Invoke(&ir.EvalContext{Context: context.Background()}, transport, md, map[string]any{"id": "7"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "7", "name": "rex"}, v)

	calls := transport.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "/user.UserService/GetUser", calls[0].FullMethod)
}

func TestResolveGrpcRendersTemplateAndDispatches(t *testing.T) {
	fd := buildUserService(t)

	respMsg := dynamicpb.NewMessage(fd.Services().Get(0).Methods().Get(0).Output())
	respMsg.Set(respMsg.Descriptor().Fields().ByName("id"), protoreflect.ValueOfString("7"))

	transport := grpcrt.NewMockTransport(respMsg)
	rt := grpcrt.New([]protoreflect.FileDescriptor{fd}, transport)

	leaf := &ir.GrpcIO{Template: mustGrpcTemplate(t)}
	v, err := rt.ResolveGrpc(&ir.EvalContext{Context: context.Background(), Args: map[string]any{"id": "7"}}, leaf)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "7"}, v)
}
