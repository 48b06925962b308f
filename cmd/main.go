package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ponytojas/go-udp-sensor/config"
	"github.com/ponytojas/go-udp-sensor/internal/database"
	"github.com/ponytojas/go-udp-sensor/internal/mqtt"
	"github.com/ponytojas/go-udp-sensor/internal/receiver"
)

const (
	listenPort = 8888
	// Only announced in the banner; datagrams from any host are accepted.
	expectedSender = "192.168.1.38"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration for the optional sinks
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Printf("Error loading config: %v. Using default configuration.", err)
		cfg = config.GetDefaultConfig()
	}

	var sinks []receiver.Sink

	if cfg.Database.Enabled {
		log.Println("Connecting to TimescaleDB...")
		db, err := database.NewTimescaleDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.InitializeTable(ctx); err != nil {
			return err
		}
		sinks = append(sinks, db)
	}

	if cfg.MQTT.Enabled {
		log.Println("Setting up MQTT publisher...")
		publisher := mqtt.NewPublisher(cfg)
		if err := publisher.Connect(); err != nil {
			return err
		}
		defer publisher.Disconnect()
		sinks = append(sinks, publisher)
	}

	printer := receiver.NewPrinter(os.Stdout)
	rcv, err := receiver.Listen(fmt.Sprintf("0.0.0.0:%d", listenPort), printer, sinks...)
	if err != nil {
		return err
	}
	defer rcv.Close()

	printer.Banner(listenPort, expectedSender)

	return rcv.Run(ctx)
}
