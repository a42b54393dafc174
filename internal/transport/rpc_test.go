package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stakpak/agent-core/pkg/models"
)

type echoDispatchServer struct {
	received *DispatchRequest
}

func (s *echoDispatchServer) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	s.received = req
	return &DispatchResponse{}, nil
}

func TestDispatch_RoundTripOverPlaintextListener(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv := grpc.NewServer()
	handler := &echoDispatchServer{}
	RegisterDispatchServer(srv, handler)
	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	client := NewDispatchClient(conn)
	dispatcher := NewAgentDispatcher(client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sched := models.Schedule{Name: "disk-cleanup", Prompt: "clean up"}
	callerContext := []models.CallerContextInput{{Name: "watch_schedule_context", Content: "Schedule: disk-cleanup", Priority: "high"}}

	if err := dispatcher.Dispatch(ctx, sched, "clean up", callerContext); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if handler.received == nil || handler.received.ScheduleName != "disk-cleanup" {
		t.Fatalf("expected server to receive request, got %+v", handler.received)
	}
	if len(handler.received.CallerContext) != 1 {
		t.Fatalf("expected caller context to round-trip, got %+v", handler.received.CallerContext)
	}
}

func TestDispatch_ServerErrorSurfacesToCaller(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv := grpc.NewServer()
	RegisterDispatchServer(srv, erroringDispatchServer{})
	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	dispatcher := NewAgentDispatcher(NewDispatchClient(conn))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = dispatcher.Dispatch(ctx, models.Schedule{Name: "gated"}, "prompt", nil)
	if err == nil {
		t.Fatalf("expected error to surface from agent")
	}
}

type erroringDispatchServer struct{}

func (erroringDispatchServer) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	return &DispatchResponse{Error: "agent unavailable"}, nil
}
