package notify

import (
	"gamecore-events/services/events"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("notify.service",
	fx.Provide(
		NewNotifier,
		func(n *Notifier) events.NotificationSink { return n },
	),
	fx.Invoke(
		Migrate,
		RegisterTaskHandlers,
	),
)

func Migrate(n *Notifier) error {
	return n.Migrate()
}

func RegisterTaskHandlers(mux *asynq.ServeMux, n *Notifier) {
	mux.HandleFunc(DeliverTask, n.HandleDeliverTask)
}
