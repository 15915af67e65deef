package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rafflepool/api"
	"rafflepool/application"
	"rafflepool/config"
	"rafflepool/database"
	"rafflepool/domain/events"
	"rafflepool/domain/interfaces"
	"rafflepool/infrastructure"
	"rafflepool/infrastructure/observability"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context())
		},
	}
}

// Run initializes and starts the ledger service until ctx is cancelled
func Run(ctx context.Context) error {
	log.Info("Starting rafflepool...")

	cfg := config.Get()

	if cfg.OTelEnabled {
		log.Info("Initializing metrics...")
		if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
				log.WithError(err).Error("Error shutting down metrics")
			}
		}()
	}

	localBus := infrastructure.NewLocalEventBus()
	localBus.SubscribeAll(func(_ context.Context, event events.Event) {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"ledger":    event.Ledger().Hex(),
		}).Info("Ledger event committed")
	})

	services, err := openServices(ctx, cfg, localBus)
	if err != nil {
		return err
	}
	defer services.Close()

	router := api.NewRouter(api.NewHandler(services.ledgers))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	log.WithField("environment", cfg.Environment).Info("Rafflepool is running")
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}
	log.Info("Shutdown completed")
	return nil
}

// ledgerServices holds everything a command needs to run ledger operations
type ledgerServices struct {
	db         *database.DB
	natsClient *infrastructure.NATSClient
	ledgers    *application.LedgerHandler
}

// openServices connects the database and builds the ledger handler. Committed events
// go to NATS when enabled, otherwise to fallback.
func openServices(ctx context.Context, cfg *config.Config, fallback interfaces.EventPublisher) (*ledgerServices, error) {
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	services := &ledgerServices{db: db}
	metrics := observability.GetMetrics()

	publisher := fallback
	if cfg.NATSEnabled {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		client := infrastructure.NewNATSClient(cfg.NATSServers, "rafflepool")
		if err := client.Connect(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		natsPublisher := infrastructure.NewNATSEventPublisher(client, infrastructure.NewEventSubjectMapper(), metrics)
		if err := natsPublisher.EnsureLedgerEventStream(client); err != nil {
			client.Close()
			db.Close()
			return nil, fmt.Errorf("failed to ensure ledger event stream: %w", err)
		}
		services.natsClient = client
		publisher = natsPublisher
		log.Info("NATS event publisher initialized successfully")
	} else {
		log.Info("NATS disabled, events stay in-process and in the ledger event log")
	}

	uowFactory := infrastructure.NewUnitOfWorkFactoryWrapper(db, publisher)
	services.ledgers = application.NewLedgerHandler(uowFactory, application.WithMetrics(metrics))
	return services, nil
}

func (s *ledgerServices) Close() {
	if s.natsClient != nil {
		if err := s.natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	log.Info("Closing database connection...")
	s.db.Close()
}
