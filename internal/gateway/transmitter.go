package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nidhogg/polly/internal/parrot"
)

// ErrNoRoute is returned when a speech channel is not bridged to any
// platform channel.
var ErrNoRoute = errors.New("speech channel not routed")

// Route bridges one speech channel to one platform channel. The empty
// speech channel is local speech.
type Route struct {
	Channel   string `json:"channel"`
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
}

// Routes indexes routes in both directions.
type Routes struct {
	out map[string]Route
	in  map[string]string
}

// NewRoutes builds the index. A later route for the same speech channel
// replaces the earlier one.
func NewRoutes(routes []Route) *Routes {
	r := &Routes{
		out: make(map[string]Route, len(routes)),
		in:  make(map[string]string, len(routes)),
	}
	for _, rt := range routes {
		r.out[rt.Channel] = rt
		r.in[rt.Platform+"/"+rt.ChannelID] = rt.Channel
	}
	return r
}

// Target returns the platform channel a speech channel is bridged to.
func (r *Routes) Target(channel string) (Route, bool) {
	rt, ok := r.out[channel]
	return rt, ok
}

// Source returns the speech channel a platform channel carries.
func (r *Routes) Source(platform, channelID string) (string, bool) {
	ch, ok := r.in[platform+"/"+channelID]
	return ch, ok
}

// Transmitter delivers parrot speech to the chat platforms.
type Transmitter struct {
	gw     *Gateway
	routes *Routes
}

// NewTransmitter creates a parrot.Transmitter over gw.
func NewTransmitter(gw *Gateway, routes *Routes) *Transmitter {
	return &Transmitter{gw: gw, routes: routes}
}

// Emit implements parrot.Transmitter.
func (t *Transmitter) Emit(ctx context.Context, e parrot.Emission) error {
	rt, ok := t.routes.Target(e.Channel)
	if !ok {
		return fmt.Errorf("emit on %q: %w", e.Channel, ErrNoRoute)
	}
	return t.gw.Send(ctx, &OutboundMessage{
		Platform:  rt.Platform,
		ChannelID: rt.ChannelID,
		AgentID:   e.AgentID,
		Content:   e.Text,
		Whisper:   e.Whisper,
	})
}
