package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди брокера.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	ExchangeTasks   Exchange = "sequora.tasks"
	ExchangeRuns    Exchange = "sequora.runs"
	ExchangeControl Exchange = "sequora.control"
)

const (
	// QueueTaskEvents — события задач для внешних подписчиков.
	QueueTaskEvents Queue = "sequora.task_events"

	// QueueRunEvents — события запусков.
	QueueRunEvents Queue = "sequora.run_events"

	// QueueControl — входящие команды управления.
	QueueControl Queue = "sequora.control_commands"
)

const (
	RoutingKeyStatus  RoutingKey = "status"
	RoutingKeyCommand RoutingKey = "command"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Идемпотентно: повторное объявление тех же сущностей безопасно.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	for _, ex := range []Exchange{ExchangeTasks, ExchangeRuns, ExchangeControl} {
		if err := ch.ExchangeDeclare(string(ex), "direct", true, false, false, false, amqp.Table{}); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	bindings := []struct {
		queue    Queue
		key      RoutingKey
		exchange Exchange
	}{
		{QueueTaskEvents, RoutingKeyStatus, ExchangeTasks},
		{QueueRunEvents, RoutingKeyStatus, ExchangeRuns},
		{QueueControl, RoutingKeyCommand, ExchangeControl},
	}
	for _, b := range bindings {
		if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, amqp.Table{}); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, amqp.Table{}); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}
