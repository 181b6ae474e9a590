package cmd

import (
	"context"
	"time"

	"github.com/frahmantamala/innovation-portal/internal/core/events"
	"github.com/frahmantamala/innovation-portal/internal/ids"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Inspect the domain events the portal emits by publishing samples to a local event bus.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a sample event",
	Long:  `Publish a sample event (submission.transitioned, initiative.created or any custom type) and log what subscribers receive.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishSampleEvent(cmd.Context(), args[0])
	},
}

var (
	eventData         string
	eventSubmissionID string
	eventActorID      string
	eventToStatus     string
)

func sampleEvent(eventType string) events.Event {
	switch eventType {
	case events.EventTypeSubmissionTransitioned:
		return events.NewSubmissionTransitionedEvent(eventSubmissionID, "convert", "APPROVED", eventToStatus,
			eventActorID, eventActorID, "Sample submission", eventData)
	case events.EventTypeInitiativeCreated:
		return events.NewInitiativeCreatedEvent(ids.New(), eventSubmissionID, eventActorID)
	default:
		return events.BaseEvent{
			ID:        ids.NewUUID(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"message": eventData,
				"source":  "cli-command",
			},
		}
	}
}

func publishSampleEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lg := logger.LoggerWrapper()
	eventBus := events.NewEventBus(lg)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("subscriber received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	event := sampleEvent(eventType)
	lg.Info("publishing sample event", "event_type", eventType, "event_id", event.EventID())

	return eventBus.PublishSync(ctx, event)
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "sample message", "free-form payload message")
	publishEventCmd.Flags().StringVar(&eventSubmissionID, "submission-id", ids.New(), "submission id for submission and initiative events")
	publishEventCmd.Flags().StringVar(&eventActorID, "actor-id", ids.NewUUID(), "acting user id")
	publishEventCmd.Flags().StringVar(&eventToStatus, "to-status", "CONVERTED", "target status for submission.transitioned")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
