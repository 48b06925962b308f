package models

import (
	"net"
	"time"
)

// SensorReading is the record sent by the sensor board in every datagram
type SensorReading struct {
	Temperature     float32 `json:"temperature"`
	Humidity        float32 `json:"humidity"`
	DeviceTimestamp uint32  `json:"device_timestamp_ms"`
}

// Reading is a decoded SensorReading together with where and when it was received
type Reading struct {
	SensorReading
	Source     *net.UDPAddr `json:"-"`
	ReceivedAt time.Time    `json:"received_at"`
}

// SourceIP returns the sender IP as text, or an empty string if the source is unknown
func (r Reading) SourceIP() string {
	if r.Source == nil {
		return ""
	}
	return r.Source.IP.String()
}
