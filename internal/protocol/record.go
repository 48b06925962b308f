// Package protocol implements the fixed-size binary record sent by the sensor board.
//
// A record is exactly RecordSize bytes, little-endian, with no padding:
//
//	offset 0  float32  temperature (°C)
//	offset 4  float32  humidity (%)
//	offset 8  uint32   device uptime (ms)
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ponytojas/go-udp-sensor/internal/models"
)

// RecordSize is the length in bytes of one encoded SensorReading
const RecordSize = 12

// ErrUnexpectedLength is matched by every *UnexpectedLengthError
var ErrUnexpectedLength = errors.New("unexpected data length")

// UnexpectedLengthError reports a payload whose length is not RecordSize
type UnexpectedLengthError struct {
	Length int
}

func (e *UnexpectedLengthError) Error() string {
	return fmt.Sprintf("%s %d bytes", ErrUnexpectedLength, e.Length)
}

func (e *UnexpectedLengthError) Is(target error) bool {
	return target == ErrUnexpectedLength
}

// Decode unpacks a RecordSize payload into a SensorReading
func Decode(payload []byte) (models.SensorReading, error) {
	if len(payload) != RecordSize {
		return models.SensorReading{}, &UnexpectedLengthError{Length: len(payload)}
	}

	return models.SensorReading{
		Temperature:     math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4])),
		Humidity:        math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8])),
		DeviceTimestamp: binary.LittleEndian.Uint32(payload[8:12]),
	}, nil
}

// Encode packs a SensorReading the same way the sensor board does
func Encode(r models.SensorReading) []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(r.Temperature))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(r.Humidity))
	binary.LittleEndian.PutUint32(buf[8:12], r.DeviceTimestamp)
	return buf
}
