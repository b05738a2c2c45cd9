package radio

// Picker draws uniform indices in [0, n).
type Picker interface {
	IntN(n int) int
}

// Device is an equipped item that can broadcast on a fixed set of channels.
type Device struct {
	ID       string     `json:"id"`
	Channels ChannelSet `json:"channels"`
}

// Radio aggregates the channels of every broadcast device a parrot wears.
type Radio struct {
	// AttemptChance is the probability that a speech attempt goes out over
	// the radio instead of local chat.
	AttemptChance float64

	devices  []Device
	channels ChannelSet
}

// New creates a radio with no devices equipped.
func New(attemptChance float64) *Radio {
	return &Radio{
		AttemptChance: attemptChance,
		channels:      make(ChannelSet),
	}
}

// Equip records a device and recomputes the channel set. Equipping an id
// that is already worn replaces the previous entry. Devices without any
// channel are not broadcast-capable: they are not tracked, and one reusing
// a worn id drops that device's channels. It reports whether d is tracked.
func (r *Radio) Equip(d Device) bool {
	if len(d.Channels) == 0 {
		r.Unequip(d.ID)
		return false
	}
	d.Channels = d.Channels.Clone()
	for i := range r.devices {
		if r.devices[i].ID == d.ID {
			r.devices[i] = d
			r.Recompute()
			return true
		}
	}
	r.devices = append(r.devices, d)
	r.Recompute()
	return true
}

// Unequip forgets a device. It returns false when the device was never
// tracked, in which case the channel set is left untouched.
func (r *Radio) Unequip(deviceID string) bool {
	for i := range r.devices {
		if r.devices[i].ID == deviceID {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			r.Recompute()
			return true
		}
	}
	return false
}

// Recompute rebuilds the aggregate channel set from scratch as the union of
// all equipped devices.
func (r *Radio) Recompute() ChannelSet {
	r.channels.Clear()
	for _, d := range r.devices {
		r.channels.Union(d.Channels)
	}
	return r.channels.Clone()
}

// Channels returns a copy of the aggregate channel set.
func (r *Radio) Channels() ChannelSet {
	return r.channels.Clone()
}

// DeviceIDs returns the equipped device ids in equip order.
func (r *Radio) DeviceIDs() []string {
	out := make([]string, len(r.devices))
	for i, d := range r.devices {
		out[i] = d.ID
	}
	return out
}

// Pick chooses one channel uniformly at random. It returns false when no
// channel is reachable.
func (r *Radio) Pick(rng Picker) (string, bool) {
	if len(r.channels) == 0 {
		return "", false
	}
	ids := r.channels.Sorted()
	return ids[rng.IntN(len(ids))], true
}
