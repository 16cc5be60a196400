package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/changes"
	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/content"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
	"go-topic-relay/internal/infrastructure/notify"
	"go-topic-relay/internal/infrastructure/server"
)

var version = "dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(WithSignal(context.Background())); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "topic-relay",
		Short:         "Push topic content to WebSocket and SSE subscribers when it changes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configPath)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("RELAY_CONFIG"), "path to a YAML config file")

	rootCmd.AddCommand(
		newMarkCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func runServer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	lCfg, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	log := logger.NewLogrusLogger(lCfg)

	store, err := content.Open(ctx, cfg.Content, log)
	if err != nil {
		return fmt.Errorf("open content store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("failed to close content store: %v", err)
		}
	}()

	registry := hub.NewRegistry(log,
		hub.WithSendTimeout(cfg.Relay.SendTimeout),
		hub.WithJanitorInterval(cfg.Relay.JanitorInterval),
	)
	index := hub.NewIndex(registry, log)
	svc := relay.New(registry, index, notify.NewNotifier(), store, log,
		relay.WithDeliveryTimeout(cfg.Relay.DeliveryTimeout),
	)

	// Start the relay first so handlers never see it stopped.
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}

	sources, err := buildSources(cfg.Changes, svc, store, log)
	if err != nil {
		_ = svc.Stop(context.Background())
		return err
	}

	router := InitRouter(cfg, svc, store, log)
	httpSrv := server.NewHTTPServer(router, cfg.Server, log)
	app := newApplication(log, httpSrv, svc, sources, cfg.Server.ShutdownTimeout)
	return app.Run(ctx)
}

func buildSources(cfg config.ChangesConfig, marker changes.Marker, store content.Store, log logger.Logger) ([]changes.Source, error) {
	var sources []changes.Source
	if len(cfg.Schedule) > 0 {
		sources = append(sources, changes.NewScheduleSource(cfg.Schedule, marker, log))
	}
	if cfg.Kafka.Enabled() {
		src, err := changes.NewKafkaSource(cfg.Kafka, marker, store, log)
		if err != nil {
			return nil, fmt.Errorf("kafka change source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

type Application struct {
	logger          logger.Logger
	httpSrv         server.Server
	relay           *relay.Service
	sources         []changes.Source
	shutdownTimeout time.Duration
}

func newApplication(
	logger logger.Logger,
	httpSrv server.Server,
	svc *relay.Service,
	sources []changes.Source,
	shutdownTimeout time.Duration,
) *Application {
	return &Application{
		logger:          logger.WithField("app", "topic-relay"),
		httpSrv:         httpSrv,
		relay:           svc,
		sources:         sources,
		shutdownTimeout: shutdownTimeout,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg, gctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.httpSrv.Start(gctx)
	})

	for _, src := range app.sources {
		eg.Go(func() error {
			app.logger.Infof("change source %s started", src.Name())
			if err := src.Run(gctx); err != nil {
				return fmt.Errorf("change source %s: %w", src.Name(), err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-gctx.Done()

		gracefulshutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			app.shutdownTimeout,
		)
		defer cancel()

		// Stop the relay first so streaming handlers return.
		if err := app.relay.Stop(gracefulshutdownCtx); err != nil {
			app.logger.Errorf("failed to stop relay: %v", err)
		}

		return app.httpSrv.Stop(gracefulshutdownCtx)
	})

	return eg.Wait()
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
