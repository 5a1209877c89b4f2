package player

import (
	"gamecore-events/services/events"

	"go.uber.org/fx"
)

var Module = fx.Module("player.store",
	fx.Provide(
		NewStore,
		func(s *Store) events.UserStore { return s },
		func(s *Store) events.ItemStore { return s },
		func(s *Store) events.TaskStore { return s },
	),
	fx.Invoke(Migrate),
)

func Migrate(s *Store) error {
	return s.Migrate()
}
