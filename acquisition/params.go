package acquisition

// ChannelParams are the operating parameters of one channel.
type ChannelParams struct {
	Rate      float64 `json:"odr"`
	FullScale float64 `json:"fs"`
	Active    bool    `json:"active"`
}

// Params is the cached operating parameters record of a sensor. A Sensor owns exactly one and
// only touches it under its parameters lock.
type Params struct {
	Channels []ChannelParams `json:"channels"`
}

// ParamsFromStatus extracts operating parameters from a registrar status.
func ParamsFromStatus(status Status) Params {
	p := Params{Channels: make([]ChannelParams, len(status.Channels))}
	for i, ch := range status.Channels {
		p.Channels[i] = ChannelParams{Rate: ch.Rate, FullScale: ch.FullScale, Active: ch.Active}
	}
	return p
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	out := Params{Channels: make([]ChannelParams, len(p.Channels))}
	copy(out.Channels, p.Channels)
	return out
}

// ActiveFlags returns the active flag of every channel.
func (p Params) ActiveFlags() []bool {
	out := make([]bool, len(p.Channels))
	for i, ch := range p.Channels {
		out[i] = ch.Active
	}
	return out
}

// ResolveRate picks the single rate a shared rate register is programmed with. The first active
// channel's rate wins; with no active channel the last channel's rate is used. The winner is
// mirrored into every channel so the cached metadata stays consistent with the device.
func (p *Params) ResolveRate() float64 {
	if len(p.Channels) == 0 {
		return 0
	}
	authoritative := len(p.Channels) - 1
	for i, ch := range p.Channels {
		if ch.Active {
			authoritative = i
			break
		}
	}
	rate := p.Channels[authoritative].Rate
	for i := range p.Channels {
		p.Channels[i].Rate = rate
	}
	return rate
}
