package api

import (
	"context"
	"fmt"
	"net"

	logging "github.com/ipfs/go-log/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/w3f-grants-archive/validated-streams/network/gossip"
)

var log = logging.Logger("api")

// ValidatePort is the fixed port the Streams gRPC service listens on.
const ValidatePort = 5555

// Validator accepts a client-submitted event identifier for witnessing and
// reports a human-readable status for the caller.
type Validator interface {
	HandleClientRequest(ctx context.Context, id gossip.EventID) (string, error)
}

// StreamsService serves the Streams gRPC API on behalf of a Validator.
type StreamsService struct {
	UnimplementedStreamsServer
	validator Validator
}

// NewStreamsService returns a gRPC service handler backed by validator.
func NewStreamsService(validator Validator) *StreamsService {
	return &StreamsService{validator: validator}
}

// ValidateEvent checks the request shape and hands the identifier to the
// validator. Identifiers that are not exactly 32 bytes are rejected before
// the validator sees them.
func (s *StreamsService) ValidateEvent(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	origin, ok := peer.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Aborted, "failed to retrieve origin address")
	}
	id, err := gossip.EventIDFromBytes(req.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid event id: %v", err)
	}
	log.Debugf("validate request for event %s from %s", id, origin.Addr)
	reply, err := s.validator.HandleClientRequest(ctx, id)
	if err != nil {
		return nil, status.Errorf(codes.Aborted, "failed to witness event: %v", err)
	}
	return wrapperspb.String(reply), nil
}

// Server wraps a grpc.Server bound to the fixed validation port.
type Server struct {
	grpc *grpc.Server
	lis  net.Listener
}

// NewServer binds the validation port and registers the Streams service.
// A bind failure is returned to the caller; the node treats it as fatal.
func NewServer(validator Validator) (*Server, error) {
	addr := fmt.Sprintf(":%d", ValidatePort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind validation endpoint on %s: %v", addr, err)
	}
	gs := grpc.NewServer()
	RegisterStreamsServer(gs, NewStreamsService(validator))
	return &Server{grpc: gs, lis: lis}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr { return s.lis.Addr() }

// Serve blocks serving gRPC requests until Stop is called.
func (s *Server) Serve() error {
	log.Infof("validation endpoint listening on %s", s.lis.Addr())
	return s.grpc.Serve(s.lis)
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
