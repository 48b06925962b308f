package sender

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/ponytojas/go-udp-sensor/internal/models"
)

// Source produces one temperature/humidity sample per call
type Source interface {
	Sample() (temperature, humidity float32, err error)
}

// Run samples source every interval and sends each reading through c until ctx is done.
// The device timestamp is the uptime of the loop in milliseconds and wraps like the board's.
// A failed sample or send is logged and the loop carries on.
func Run(ctx context.Context, c *Client, source Source, interval time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		temperature, humidity, err := source.Sample()
		if err != nil {
			log.Printf("Sensor reading failed: %v", err)
			continue
		}

		reading := models.SensorReading{
			Temperature:     temperature,
			Humidity:        humidity,
			DeviceTimestamp: uint32(time.Since(start).Milliseconds()),
		}
		if err := c.Send(reading); err != nil {
			log.Printf("UDP transmission failed: %v", err)
			continue
		}
		log.Printf("UDP transmitted: %.2f deg, %.2f %% [%d ms]",
			reading.Temperature, reading.Humidity, reading.DeviceTimestamp)
	}
}

// RandomWalk is a Source drifting around a starting point, clamped to sane sensor ranges
type RandomWalk struct {
	Temperature float32
	Humidity    float32
	Step        float32

	rng *rand.Rand
}

// NewRandomWalk creates a RandomWalk starting at the given values
func NewRandomWalk(temperature, humidity, step float32, seed int64) *RandomWalk {
	return &RandomWalk{
		Temperature: temperature,
		Humidity:    humidity,
		Step:        step,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Sample moves both values by at most Step and returns them
func (w *RandomWalk) Sample() (float32, float32, error) {
	w.Temperature = clamp(w.Temperature+w.delta(), -40, 125)
	w.Humidity = clamp(w.Humidity+w.delta(), 0, 100)
	return w.Temperature, w.Humidity, nil
}

func (w *RandomWalk) delta() float32 {
	return (w.rng.Float32()*2 - 1) * w.Step
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
