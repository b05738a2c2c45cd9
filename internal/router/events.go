package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/polly/internal/bus"
	"github.com/nidhogg/polly/internal/parrot"
	"go.uber.org/zap"
)

var errIncompleteEvent = errors.New("incomplete event")

// Run applies world events until the channel closes or ctx is done.
func (mr *MessageRouter) Run(ctx context.Context, events <-chan *bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := mr.HandleEvent(ctx, ev); err != nil {
				mr.logger.Warn("event rejected",
					zap.String("type", ev.Type),
					zap.String("agent", ev.Agent),
					zap.Error(err))
			}
		}
	}
}

// HandleEvent applies one world event.
func (mr *MessageRouter) HandleEvent(ctx context.Context, ev *bus.Event) error {
	switch ev.Type {
	case bus.EventHeard:
		h := parrot.Heard{
			Source:         ev.Source,
			SourceIsParrot: ev.SourceIsParrot,
			Text:           ev.Text,
			Channel:        ev.Channel,
		}
		now := mr.clock.Now()
		if ev.Agent == "" {
			mr.engine.Overhear(h, now)
			return nil
		}
		_, err := mr.engine.OnPhraseHeard(ev.Agent, h, now)
		return err

	case bus.EventEquipped:
		if ev.Device == nil {
			return fmt.Errorf("equipped without device: %w", errIncompleteEvent)
		}
		return mr.engine.OnDeviceEquipped(ev.Agent, *ev.Device)

	case bus.EventUnequipped:
		return mr.engine.OnDeviceUnequipped(ev.Agent, ev.DeviceID)

	case bus.EventIncapacitated:
		return mr.engine.SetIncapacitated(ev.Agent, ev.Incapacitated)

	case bus.EventRoundStarted:
		mr.engine.SetRound(ev.Round)
		return nil

	case bus.EventPlayerAttached:
		if mr.presence == nil {
			return nil
		}
		if ev.Entity == "" {
			return fmt.Errorf("player_attached without entity: %w", errIncompleteEvent)
		}
		if err := mr.presence.Attach(ctx, ev.Entity, ev.UserID, ev.Name); err != nil {
			return err
		}
		if mr.names != nil && ev.Name != "" {
			if err := mr.names.UpsertPlayer(ctx, ev.UserID, ev.Name); err != nil {
				return err
			}
		}
		return nil

	case bus.EventPlayerDetached:
		if mr.presence == nil {
			return nil
		}
		return mr.presence.Detach(ctx, ev.Entity)

	case bus.EventPlaytime:
		if mr.presence == nil {
			return nil
		}
		_, err := mr.presence.AddPlaytime(ctx, ev.UserID, time.Duration(ev.PlayedSeconds)*time.Second)
		return err

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}
