package bridge

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/cluely/internal/gateway"
	"github.com/rbright/cluely/internal/logging"
	"github.com/rbright/cluely/internal/metrics"
)

// Server receives published events and fans them out to subscribers. It is a
// gateway.EventSource.
type Server struct {
	bus     *gateway.Bus
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewServer(logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{bus: gateway.NewBus(), logger: logger, metrics: m}
}

// Register installs the gateway service on gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) Subscribe(kind gateway.EventKind, fn gateway.Handler) func() {
	return s.bus.Subscribe(kind, fn)
}

// Subscribers counts live subscriptions.
func (s *Server) Subscribers() int {
	return s.bus.Subscribers()
}

func (s *Server) publish(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ev, err := decodeEvent(in)
	if err != nil {
		s.logger.Warn("rejected lifecycle event", "error", err.Error())
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.metrics.RecordGatewayEvent(string(ev.Kind))
	delivered := s.bus.Publish(ev)
	s.logger.Debug("lifecycle event received", "event", string(ev.Kind), "delivered", delivered)

	return structpb.NewStruct(map[string]any{
		"accepted":  true,
		"delivered": delivered,
	})
}
