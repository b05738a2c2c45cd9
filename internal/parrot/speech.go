package parrot

import (
	"context"
	"fmt"

	"github.com/nidhogg/polly/internal/memory"
	"github.com/nidhogg/polly/internal/metrics"
	"github.com/nidhogg/polly/internal/radio"
	"go.uber.org/zap"
)

// speakLocked makes one emission attempt. The slot is already consumed by
// the caller, so a parrot that cannot speak or knows nothing stays quiet
// until its next deadline.
func (e *Engine) speakLocked(id string, mem *memory.Memory) {
	p := e.parrots[id]
	if p.Incapacitated {
		return
	}
	phrase, ok := mem.PickRandom(e.rng)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.emitTimeout)
	defer cancel()

	fallback := false
	if r, ok := e.radios[id]; ok && prob(e.rng, r.AttemptChance) {
		err := e.speakRadio(ctx, p, r, phrase)
		if err == nil {
			return
		}
		fallback = true
		e.metrics.EmitFailed(metrics.RouteRadio)
		e.logger.Debug("radio speech failed, using local chat",
			zap.String("agent", id),
			zap.Error(err))
	}

	err := e.tx.Emit(ctx, Emission{
		AgentID:   id,
		AgentName: p.Name,
		Text:      phrase,
	})
	if err != nil {
		e.metrics.EmitFailed(metrics.RouteLocal)
		e.logger.Warn("parrot speech failed",
			zap.String("agent", id),
			zap.Error(err))
		return
	}
	if fallback {
		e.metrics.Emitted(metrics.RouteFallback)
	} else {
		e.metrics.Emitted(metrics.RouteLocal)
	}
}

// speakRadio whispers phrase on a random reachable channel, prefixed with
// the channel's marker.
func (e *Engine) speakRadio(ctx context.Context, p *Parrot, r *radio.Radio, phrase string) error {
	channel, ok := r.Pick(e.rng)
	if !ok {
		return errNoChannels
	}
	marker, err := e.catalog.Marker(channel)
	if err != nil {
		return err
	}
	err = e.tx.Emit(ctx, Emission{
		AgentID:   p.ID,
		AgentName: p.Name,
		Text:      marker + phrase,
		Channel:   channel,
		Whisper:   true,
	})
	if err != nil {
		return fmt.Errorf("emit on %s: %w", channel, err)
	}
	e.metrics.Emitted(metrics.RouteRadio)
	return nil
}
