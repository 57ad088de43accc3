package main

import (
	"context"
	"log"

	"github.com/fitbook/booking-core/pkg/broker"
	"github.com/fitbook/booking-core/pkg/config"
	"github.com/fitbook/booking-core/pkg/processor"
	"github.com/fitbook/booking-core/pkg/store"
	"github.com/fitbook/booking-core/pkg/telemetry"
)

func main() {
	ctx := context.Background()

	// Load configuration from file or environment
	cfg, err := config.LoadFromFile("./cmd/outbox-sweeper")
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	// Initialize telemetry (tracing and metrics)
	shutdownTelemetry, err := telemetry.Init(cfg.Observability)
	if err != nil {
		log.Fatal("Failed to initialize telemetry: ", err)
	}
	defer shutdownTelemetry() // Ensure telemetry is properly shut down on exit

	// Initialize the outbox store
	outboxStore, err := store.NewStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize outbox store: ", err)
	}

	// Initialize the message broker
	messageBroker, err := broker.NewBroker(ctx, &cfg.Broker)
	if err != nil {
		log.Fatal("Failed to initialize broker: ", err)
	}
	defer messageBroker.Close()

	// Run the sweeper (blocks until the context is cancelled)
	sweeper := processor.NewSweeper(outboxStore, messageBroker, cfg)
	sweeper.Run(ctx)
}
