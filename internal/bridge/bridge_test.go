package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/cluely/internal/gateway"
	"github.com/rbright/cluely/internal/metrics"
)

func startBridge(t *testing.T, m *metrics.Metrics) (*Server, *Client) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	srv := NewServer(nil, m)
	srv.Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	client, err := Dial(context.Background(), "passthrough:///bufnet", time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestPublishDeliversDecodedEvent(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	srv, client := startBridge(t, m)

	got := make(chan gateway.Event, 1)
	srv.Subscribe(gateway.EventSolveSuccess, func(ev gateway.Event) { got <- ev })

	want := gateway.Event{
		Kind: gateway.EventSolveSuccess,
		Payload: &gateway.SolutionPayload{Solution: &gateway.Solution{
			Code:            "return a + b",
			Thoughts:        []string{"add", "return"},
			TimeComplexity:  "O(1)",
			SpaceComplexity: "O(1)",
		}},
		Generation: 7,
	}
	delivered, err := client.Publish(context.Background(), want)
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
	require.Equal(t, want, <-got)
	require.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("solve-success")))
}

func TestPublishWithoutSubscribersIsAccepted(t *testing.T) {
	_, client := startBridge(t, nil)

	delivered, err := client.Publish(context.Background(), gateway.Event{Kind: gateway.EventCaptureTaken})
	require.NoError(t, err)
	require.Zero(t, delivered)
}

func TestPublishRejectsUnknownKind(t *testing.T) {
	_, client := startBridge(t, nil)

	_, err := client.Publish(context.Background(), gateway.Event{Kind: "launch-rockets"})
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	srv, client := startBridge(t, nil)

	calls := 0
	unsubscribe := srv.Subscribe(gateway.EventResetView, func(gateway.Event) { calls++ })
	require.Equal(t, 1, srv.Subscribers())
	unsubscribe()
	require.Zero(t, srv.Subscribers())

	delivered, err := client.Publish(context.Background(), gateway.Event{Kind: gateway.EventResetView})
	require.NoError(t, err)
	require.Zero(t, delivered)
	require.Zero(t, calls)
}

func TestEventCodecKeepsMessage(t *testing.T) {
	in, err := encodeEvent(gateway.Event{Kind: gateway.EventSolveError, Message: "timeout"})
	require.NoError(t, err)
	require.Equal(t, "timeout", in.GetFields()["message"].GetStringValue())

	ev, err := decodeEvent(in)
	require.NoError(t, err)
	require.Equal(t, gateway.Event{Kind: gateway.EventSolveError, Message: "timeout"}, ev)
}

func TestDecodeRejectsMissingKind(t *testing.T) {
	in, err := structpb.NewStruct(map[string]any{"message": "no kind"})
	require.NoError(t, err)

	_, err = decodeEvent(in)
	require.Error(t, err)
}

func TestDialRejectsEmptyEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), "  ", time.Second)
	require.ErrorContains(t, err, "endpoint is empty")
}

func TestDialTimesOutWithoutServer(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())

	_, err := Dial(context.Background(), "passthrough:///bufnet", 100*time.Millisecond,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.Error(t, err)
}
