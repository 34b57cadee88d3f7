package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rbright/cluely/internal/bridge"
	"github.com/rbright/cluely/internal/cache"
	"github.com/rbright/cluely/internal/capture"
	"github.com/rbright/cluely/internal/config"
	"github.com/rbright/cluely/internal/indicator"
	"github.com/rbright/cluely/internal/ipc"
	"github.com/rbright/cluely/internal/metrics"
	"github.com/rbright/cluely/internal/pipeline"
	"github.com/rbright/cluely/internal/scribe"
	"github.com/rbright/cluely/internal/session"
)

// commandRun owns the runtime socket and serves until ctx is cancelled or a
// supervised task fails.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	controlListener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, func(context.Context) error {
		logger.Warn("removed stale control socket", "path", socketPath)
		return nil
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = controlListener.Close()
		_ = os.Remove(socketPath)
	}()

	d, err := newDaemon(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if err := d.serve(ctx, controlListener); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("daemon stopped", "error", err.Error())
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

type daemon struct {
	logger          *slog.Logger
	coordinator     *pipeline.Coordinator
	grpcServer      *grpc.Server
	gatewayListener net.Listener
	metricsServer   *metrics.Server
	metricsListener net.Listener
}

func newDaemon(cfg config.Config, logger *slog.Logger) (*daemon, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	tokens := scribe.NewTokenClient(
		cfg.Scribe.APIBase,
		os.Getenv(cfg.Scribe.APIKeyEnv),
		time.Duration(cfg.Scribe.TokenTimeoutMS)*time.Millisecond,
	)
	streamer := scribe.NewStreamer(
		scribe.PulseMicrophone{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: logger},
		scribe.WithURL(cfg.Scribe.RealtimeURL),
		scribe.WithLanguage(cfg.Scribe.LanguageCode),
		scribe.WithLogger(logger),
	)

	// The session reports into the coordinator, which in turn drives the
	// session; the callbacks only fire after Start, by which point coord is set.
	var coord *pipeline.Coordinator
	sess := session.New(logger, tokens, streamer, session.Options{
		OnFinalTranscript:   func(text string) { coord.AcceptFinalTranscript(text) },
		OnPartialTranscript: func(text string) { coord.AcceptPartialTranscript(text) },
		OnError:             func(err error) { coord.ReportTranscriptionError(err) },
		Metrics:             m,
	})

	coord = pipeline.New(
		logger,
		cache.New(),
		sess,
		capture.DirSource{Dir: cfg.Screenshots.Dir, Max: cfg.Screenshots.Max, Extensions: cfg.Screenshots.Extensions},
		indicator.NewNotifier(cfg.Indicator, logger),
		m,
	)

	gatewayListener, err := net.Listen("tcp", cfg.Gateway.Listen)
	if err != nil {
		_ = coord.Close()
		return nil, fmt.Errorf("listen gateway %s: %w", cfg.Gateway.Listen, err)
	}

	ingress := bridge.NewServer(logger, m)
	grpcServer := grpc.NewServer()
	ingress.Register(grpcServer)
	coord.Attach(ingress)

	d := &daemon{
		logger:          logger,
		coordinator:     coord,
		grpcServer:      grpcServer,
		gatewayListener: gatewayListener,
	}

	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		metricsListener, err := net.Listen("tcp", listen)
		if err != nil {
			_ = gatewayListener.Close()
			_ = coord.Close()
			return nil, fmt.Errorf("listen metrics %s: %w", listen, err)
		}
		d.metricsListener = metricsListener
		d.metricsServer = metrics.NewServer(listen, registry, logger)
	}

	return d, nil
}

func (d *daemon) serve(ctx context.Context, controlListener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.coordinator.Run(gctx)
	})
	g.Go(func() error {
		return ipc.Serve(gctx, controlListener, d.coordinator)
	})
	g.Go(func() error {
		go func() {
			<-gctx.Done()
			d.grpcServer.GracefulStop()
		}()
		d.logger.Info("gateway listening", "addr", d.gatewayListener.Addr().String())
		if err := d.grpcServer.Serve(d.gatewayListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gateway server: %w", err)
		}
		return nil
	})
	if d.metricsServer != nil {
		g.Go(func() error {
			return d.metricsServer.Serve(gctx, d.metricsListener)
		})
	}

	return g.Wait()
}
