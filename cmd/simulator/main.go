// Simulator stands in for the Nucleo sensor board and sends readings to the receiver.
//
// Usage: simulator --target=127.0.0.1:8888 --interval=1s
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ponytojas/go-udp-sensor/internal/sender"
)

func main() {
	target := pflag.String("target", "127.0.0.1:8888", "receiver address (host:port)")
	interval := pflag.Duration("interval", time.Second, "time between readings")
	temperature := pflag.Float32("temperature", 22, "starting temperature in °C")
	humidity := pflag.Float32("humidity", 45, "starting relative humidity in %")
	pflag.Parse()

	if *interval <= 0 {
		log.Fatalf("interval must be greater than 0, got %s", *interval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := sender.Dial(*target)
	if err != nil {
		log.Fatalf("Failed to create UDP client: %v", err)
	}
	defer client.Close()

	log.Printf("Sending readings to %s every %s", *target, *interval)
	source := sender.NewRandomWalk(*temperature, *humidity, 0.2, time.Now().UnixNano())
	sender.Run(ctx, client, source, *interval)

	log.Println("Simulator stopped")
}
