package acquisition

import "math"

// ID identifies a sensor in the registrar.
type ID int

// ChannelType is the physical quantity a channel measures.
type ChannelType string

// Channel types produced by the supported sensors.
const (
	TypePressure    ChannelType = "pressure"
	TypeTemperature ChannelType = "temperature"
	TypeHumidity    ChannelType = "humidity"
)

// DataTypeFloat is the only sample encoding workers produce.
const DataTypeFloat = "float"

// ChannelDescriptor is the static description of one channel (sub-sensor).
type ChannelDescriptor struct {
	ID         uint8       `json:"id"`
	Type       ChannelType `json:"sensor_type"`
	Dimensions int         `json:"dimensions"`
	Labels     []string    `json:"dimensions_labels"`
	Unit       string      `json:"unit"`
	DataType   string      `json:"data_type"`
	Rates      []float64   `json:"odr"`
	FullScales []float64   `json:"fs"`
	// SamplesPerTimestamp is the allowed [min, max] range of the derived metadata value.
	SamplesPerTimestamp [2]uint16 `json:"samples_per_ts"`

	Defaults ChannelStatus `json:"-"`
}

// Descriptor is the static description of a sensor, registered once at Create.
type Descriptor struct {
	Name     string              `json:"name"`
	Channels []ChannelDescriptor `json:"sub_sensor_descriptor"`
	// SharedRate is set when every channel is sampled from one physical rate register.
	SharedRate bool `json:"-"`
}

// ChannelStatus is the live, host-configurable state of one channel.
type ChannelStatus struct {
	Active              bool    `json:"is_active"`
	Rate                float64 `json:"odr"`
	MeasuredRate        float64 `json:"odr_measured"`
	InitialOffset       float64 `json:"initial_offset"`
	FullScale           float64 `json:"fs"`
	Sensitivity         float64 `json:"sensitivity"`
	SamplesPerTimestamp uint16  `json:"samples_per_ts"`
	WriteBufferSize     uint32  `json:"sd_write_buffer_size"`
	PacketSize          uint16  `json:"usb_data_packet_size"`
	ComChannel          int     `json:"com_channel_number"`
}

// Status is the live state of every channel of a sensor.
type Status struct {
	Channels []ChannelStatus `json:"sub_sensor_status"`
}

// Clone returns a deep copy.
func (s Status) Clone() Status {
	out := Status{Channels: make([]ChannelStatus, len(s.Channels))}
	copy(out.Channels, s.Channels)
	return out
}

// DefaultStatus builds the status a sensor starts with, applying initial over the descriptor
// defaults. With a shared rate register every channel starts at the rate the device would be
// programmed with.
func DefaultStatus(desc Descriptor, initial *Params) Status {
	status := Status{Channels: make([]ChannelStatus, len(desc.Channels))}
	for i, ch := range desc.Channels {
		status.Channels[i] = ch.Defaults
		if initial != nil && i < len(initial.Channels) {
			status.Channels[i].Active = initial.Channels[i].Active
			status.Channels[i].FullScale = initial.Channels[i].FullScale
			status.Channels[i].Rate = initial.Channels[i].Rate
		}
	}
	if desc.SharedRate {
		params := ParamsFromStatus(status)
		params.ResolveRate()
		for i := range status.Channels {
			status.Channels[i].Rate = params.Channels[i].Rate
		}
	}
	return status
}

// SamplesPerTimestamp derives how many samples share one reported timestamp: one timestamp per
// second of data, clamped to the channel's allowed range.
func SamplesPerTimestamp(rate float64, allowed [2]uint16) uint16 {
	n := math.Ceil(rate)
	if n < float64(allowed[0]) {
		n = float64(allowed[0])
	}
	if allowed[1] != 0 && n > float64(allowed[1]) {
		n = float64(allowed[1])
	}
	if n < 0 {
		return 0
	}
	return uint16(n)
}
