package inbound

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/govault/internal/pkg/config"
	"github.com/shandysiswandi/govault/internal/pkg/goroutine"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/messaging"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
	"github.com/shandysiswandi/govault/internal/shared/event"
)

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	if !cfg.GetBool("modules.alert.enabled") {
		slog.InfoContext(ctx, "security alert consumer disabled")
		return
	}

	h := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	concurrency := cfg.GetInt("modules.alert.concurrency")
	if concurrency <= 0 {
		concurrency = 4
	}

	routine.Go(ctx, func(pCtx context.Context) error {
		slog.InfoContext(ctx, "Running job for handling consumer", "consumer", event.SecurityEventConsumerAlert)
		return messenger.Subscribe(pCtx,
			event.SecurityEventDestination,
			event.SecurityEventConsumerAlert,
			h.SecurityEvent,
			messaging.WithWorkers(concurrency),
			messaging.WithMaxInFlight(2*concurrency),
		)
	})
}
