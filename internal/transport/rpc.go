package transport

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/stakpak/agent-core/pkg/models"
)

// DispatchRequest carries one run's assembled prompt and caller context
// to the agent process.
type DispatchRequest struct {
	ScheduleName  string                       `json:"schedule_name"`
	Prompt        string                       `json:"prompt"`
	CallerContext []models.CallerContextInput  `json:"caller_context"`
	Profile       *string                      `json:"profile,omitempty"`
}

// DispatchResponse is the agent's reply to one dispatch call.
type DispatchResponse struct {
	Error string `json:"error,omitempty"`
}

const dispatchContentSubtype = "json"

// jsonCodec marshals gRPC messages as JSON instead of protobuf wire
// format, avoiding a protoc code-generation step for this single
// internal service while still riding the grpc transport/credential
// stack end to end.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error  { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                        { return dispatchContentSubtype }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const dispatchServiceName = "stakpak.agentcore.v1.AgentDispatch"
const dispatchMethodName = "Dispatch"
const dispatchFullMethod = "/" + dispatchServiceName + "/" + dispatchMethodName

// DispatchServer is implemented by the agent process accepting runs.
type DispatchServer interface {
	Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error)
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(DispatchRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DispatchServer).Dispatch(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dispatchFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DispatchServer).Dispatch(ctx, req.(*DispatchRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var dispatchServiceDesc = grpc.ServiceDesc{
	ServiceName: dispatchServiceName,
	HandlerType: (*DispatchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: dispatchMethodName, Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentcore/dispatch.proto",
}

// RegisterDispatchServer attaches srv's Dispatch method to s.
func RegisterDispatchServer(s *grpc.Server, srv DispatchServer) {
	s.RegisterService(&dispatchServiceDesc, srv)
}

// DispatchClient calls Dispatch on a remote agent process over a dialed
// *grpc.ClientConn; the caller chooses the client transport credentials
// when dialing.
type DispatchClient struct {
	cc *grpc.ClientConn
}

func NewDispatchClient(cc *grpc.ClientConn) *DispatchClient {
	return &DispatchClient{cc: cc}
}

func (c *DispatchClient) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	out := new(DispatchResponse)
	err := c.cc.Invoke(ctx, dispatchFullMethod, req, out, grpc.CallContentSubtype(dispatchContentSubtype))
	if err != nil {
		return nil, err
	}
	return out, nil
}
