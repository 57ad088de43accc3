package main

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/streadway/amqp"

	"github.com/fitbook/booking-core/pkg/booking"
	"github.com/fitbook/booking-core/pkg/broker"
	"github.com/fitbook/booking-core/pkg/config"
	"github.com/fitbook/booking-core/pkg/processor"
	"github.com/fitbook/booking-core/pkg/store"
	"github.com/fitbook/booking-core/pkg/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadFromFile("./cmd/fixed-consumer")
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	shutdownTelemetry, err := telemetry.Init(cfg.Observability)
	if err != nil {
		log.Fatal("Failed to initialize telemetry: ", err)
	}
	defer shutdownTelemetry()

	// Materialization writes reservations, sessions and the next outbox
	// record in one transaction, so the consumer needs the relational store.
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer db.Close()

	messageBroker, err := broker.NewBroker(ctx, &cfg.Broker)
	if err != nil {
		log.Fatal("Failed to initialize broker: ", err)
	}
	defer messageBroker.Close()

	publisher := processor.NewPublisher(store.NewPostgresStore(db), messageBroker, cfg)
	service := booking.NewService(
		booking.NewPostgresReservationRepository(db),
		booking.NewPostgresSessionRepository(db),
		booking.NewPostgresSessionInfoService(db),
		publisher,
		store.NewTxManager(db),
	)
	consumer := processor.NewConsumer(service)

	if err := consume(ctx, cfg, consumer); err != nil {
		log.Fatal("Consumer stopped: ", err)
	}
}

// consume binds a queue to the fixed-reservation exchange and feeds messages
// to the handler. Poison messages are dead-lettered instead of requeued.
func consume(ctx context.Context, cfg *config.Settings, consumer *processor.Consumer) error {
	conn, err := amqp.Dial(cfg.Broker.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(booking.TopicFixedReservation, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	queue, err := ch.QueueDeclare(cfg.Broker.Queue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	if err := ch.QueueBind(queue.Name, "#", booking.TopicFixedReservation, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("Consuming fixed reservation events from queue %s", queue.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}

			err := consumer.Handle(ctx, delivery.Body)
			switch {
			case errors.Is(err, processor.ErrPayloadInvalid):
				log.Printf("Dropping poison message: %v", err)
				delivery.Nack(false, false) // dead-letter, never requeue
			case err != nil:
				log.Printf("Failed to materialize reservation: %v", err)
				delivery.Nack(false, true)
			default:
				delivery.Ack(false)
			}
		}
	}
}
