package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rbright/cluely/internal/gateway"
)

// Client publishes events to a running daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to endpoint and waits up to timeout for the channel to become
// ready. Extra options are appended after the default insecure credentials.
func Dial(ctx context.Context, endpoint string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("gateway endpoint is empty")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for gateway readiness: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Publish sends ev and returns how many daemon subscribers received it.
func (c *Client) Publish(ctx context.Context, ev gateway.Event) (int, error) {
	in, err := encodeEvent(ev)
	if err != nil {
		return 0, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, publishMethod, in, out); err != nil {
		return 0, fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	delivered := out.GetFields()["delivered"].GetNumberValue()
	return int(delivered), nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// waitForReady blocks until gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
