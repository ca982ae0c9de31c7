package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c360/swarmpulse/config"
	"github.com/c360/swarmpulse/coordinator"
	"github.com/c360/swarmpulse/envelope"
	gwhttp "github.com/c360/swarmpulse/gateway/http"
	"github.com/c360/swarmpulse/metric"
	"github.com/c360/swarmpulse/pkg/retry"
	"github.com/c360/swarmpulse/pkg/tlsutil"
	"github.com/c360/swarmpulse/relay"
	"github.com/c360/swarmpulse/schema"
	"github.com/c360/swarmpulse/settings"
	"github.com/c360/swarmpulse/statestore"
	"github.com/c360/swarmpulse/stomp"
	"github.com/c360/swarmpulse/wirelog"
)

func newRunCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			logger := setupLogger(cmd.OutOrStdout(), cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(logger)
			logger.Info("Starting swarmpulse",
				"version", Version,
				"build_time", BuildTime,
				"config_path", opts.configPath)

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.run(ctx, opts.shutdownTimeout)
		},
	}
}

// app holds the wired pipeline.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics  *metric.MetricsRegistry
	schemas  *schema.Registry
	wireLog  *wirelog.Store
	states   *statestore.Store
	conn     *stomp.Manager
	settings *settings.Store
	watcher  *settings.FileWatcher
	nats     *relay.NATSPublisher
	coord    *coordinator.Coordinator

	httpServer    *http.Server
	metricsServer *metric.Server
	unsubRelay    func()
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metric.NewMetricsRegistry()}
	core := a.metrics.CoreMetrics()

	var err error
	a.schemas, err = schema.NewRegistry(cfg.ControlPlane.SchemaURL,
		schema.WithFetchTimeout(cfg.ControlPlane.FetchTimeout),
		schema.WithLogger(logger.With("component", "schema")),
		schema.WithMetrics(core))
	if err != nil {
		return nil, fmt.Errorf("create schema registry: %w", err)
	}

	decoder := envelope.NewDecoder(a.schemas,
		envelope.WithDestinationPrefixes(cfg.Stomp.DestinationPrefixes...),
		envelope.WithLogger(logger.With("component", "decoder")))

	a.wireLog, err = wirelog.NewStore(decoder,
		wirelog.WithMaxEntries(cfg.WireLog.MaxEntries),
		wirelog.WithMaxBytes(cfg.WireLog.MaxBytes),
		wirelog.WithLogger(logger.With("component", "wirelog")),
		wirelog.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("create wire log: %w", err)
	}

	a.states = statestore.NewStore(
		statestore.WithTTL(cfg.State.TTL),
		statestore.WithLogger(logger.With("component", "statestore")),
		statestore.WithMetrics(core))

	connOpts := []stomp.Option{
		stomp.WithLogger(logger.With("component", "stomp")),
		stomp.WithMetrics(core),
	}
	tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.Stomp.TLS)
	if err != nil {
		return nil, fmt.Errorf("load broker tls: %w", err)
	}
	if tlsConfig != nil {
		connOpts = append(connOpts, stomp.WithTLSConfig(tlsConfig))
	}

	a.conn = stomp.NewManager(stomp.Config{
		URL:            cfg.Stomp.URL,
		Login:          cfg.Stomp.Login,
		Passcode:       cfg.Stomp.Passcode,
		Host:           cfg.Stomp.Host,
		Topics:         cfg.Stomp.Topics,
		Heartbeat:      cfg.Stomp.Heartbeat,
		ConnectTimeout: cfg.Stomp.ConnectTimeout,
	}, a.wireLog, connOpts...)

	if err := a.setupRelay(); err != nil {
		return nil, err
	}

	a.settings = settings.NewStore(settings.Settings{
		URL:      cfg.Stomp.URL,
		User:     cfg.Stomp.Login,
		Passcode: cfg.Stomp.Passcode,
		Enabled:  cfg.Stomp.Enabled,
	})
	if cfg.SettingsFile != "" {
		a.watcher = settings.NewFileWatcher(cfg.SettingsFile, a.settings,
			settings.WithWatcherLogger(logger.With("component", "settings-watcher")))
	}

	coordOpts := []coordinator.Option{
		coordinator.WithSettings(a.settings),
		coordinator.WithLogger(logger.With("component", "coordinator")),
		coordinator.WithMetrics(core),
		coordinator.WithRefreshThrottle(cfg.ControlPlane.RefreshThrottle),
		coordinator.WithSweepInterval(cfg.State.SweepInterval),
	}
	if cfg.ControlPlane.RefreshURL != "" {
		coordOpts = append(coordOpts, coordinator.WithRefresher(coordinator.NewHTTPRefresher(
			cfg.ControlPlane.RefreshURL,
			coordinator.WithRefreshTimeout(cfg.ControlPlane.FetchTimeout))))
	}
	a.coord = coordinator.New(a.schemas, a.conn, a.states, coordOpts...)

	if err := a.setupHTTP(); err != nil {
		return nil, err
	}
	if cfg.Metrics.Enabled {
		a.metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.metrics)
	}
	return a, nil
}

// setupRelay connects to NATS when a relay URL is configured.
func (a *app) setupRelay() error {
	if a.cfg.Relay.NATSURL == "" {
		return nil
	}
	pub, err := relay.Connect(a.cfg.Relay.NATSURL, appName, a.logger.With("component", "nats"))
	if err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	r, err := relay.New(pub, a.cfg.Relay.SubjectPrefix,
		relay.WithLogger(a.logger.With("component", "relay")),
		relay.WithMetrics(a.metrics.CoreMetrics()))
	if err != nil {
		pub.Close()
		return fmt.Errorf("create relay: %w", err)
	}
	a.nats = pub
	a.unsubRelay = a.conn.SubscribeMessages(r.Handle)
	return nil
}

func (a *app) setupHTTP() error {
	opts := []gwhttp.Option{gwhttp.WithLogger(a.logger.With("component", "http"))}
	if path := a.cfg.SettingsFile; path != "" {
		opts = append(opts, gwhttp.WithSettingsPersister(func(s settings.Settings) error {
			return settings.Save(path, s)
		}))
	}
	handler, err := gwhttp.NewHandler(a.coord, a.wireLog, a.states, a.settings, opts...)
	if err != nil {
		return fmt.Errorf("create http handler: %w", err)
	}

	mux := http.NewServeMux()
	handler.RegisterHTTPHandlers("/api", mux)

	a.httpServer = &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// run starts every component and blocks until ctx is done or a server fails.
func (a *app) run(ctx context.Context, shutdownTimeout time.Duration) error {
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("start settings watcher: %w", err)
		}
	}
	if err := a.coord.Start(ctx); err != nil {
		a.stop(shutdownTimeout)
		return fmt.Errorf("start coordinator: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.loadSchema(gctx)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("HTTP API listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.metricsServer != nil {
		g.Go(func() error {
			a.logger.Info("Metrics listening", "address", a.metricsServer.Address())
			return a.metricsServer.Start()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down")
		a.stop(shutdownTimeout)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("swarmpulse shutdown complete")
	return nil
}

// loadSchema performs the initial schema load with retries. Failures are
// left to the coordinator, which loads again when the broker connects.
func (a *app) loadSchema(ctx context.Context) {
	err := retry.Do(ctx, retry.Quick(), func() error {
		return a.schemas.Load(ctx).Err
	})
	if err != nil {
		a.logger.Warn("Initial schema load failed", "error", err)
		return
	}
	a.logger.Info("Envelope schema loaded")
}

func (a *app) stop(timeout time.Duration) {
	a.coord.Stop()
	a.conn.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.unsubRelay != nil {
		a.unsubRelay()
	}
	if a.nats != nil {
		a.nats.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn("HTTP shutdown failed", "error", err)
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			a.logger.Warn("Metrics shutdown failed", "error", err)
		}
	}
	a.schemas.Close()
}
