package cmd

import (
	"context"
	"fmt"

	"rafflepool/config"
	"rafflepool/domain/events"
	"rafflepool/infrastructure"
	"rafflepool/infrastructure/observability"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var consumerName string

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Log every ledger event published to NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			ctx := cmd.Context()

			client := infrastructure.NewNATSClient(cfg.NATSServers, consumerName)
			if err := client.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer client.Close()

			mapper := infrastructure.NewEventSubjectMapper()
			if err := client.EnsureStream(infrastructure.LedgerEventStream, mapper.GetAllSubjects()); err != nil {
				return fmt.Errorf("failed to ensure ledger event stream: %w", err)
			}

			subscriber := infrastructure.NewNATSEventSubscriber(client, mapper, observability.GetMetrics())
			if err := subscriber.SubscribeAll(logEvent); err != nil {
				return err
			}

			log.WithField("servers", cfg.NATSServers).Info("Watching ledger events")
			<-ctx.Done()
			return nil
		},
	}

	watchCmd.Flags().StringVar(&consumerName, "consumer", "rafflepool-watch", "durable consumer name prefix")
	return watchCmd
}

func logEvent(_ context.Context, envelope *events.EventEnvelope, event events.Event) error {
	log.WithFields(log.Fields{
		"eventId":   envelope.EventID,
		"eventType": envelope.EventType,
		"ledger":    event.Ledger().Hex(),
		"source":    envelope.SourceService,
		"timestamp": envelope.Timestamp,
		"event":     fmt.Sprintf("%+v", event),
	}).Info("Ledger event")
	return nil
}
