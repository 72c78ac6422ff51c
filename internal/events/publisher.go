package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Sequora/internal/domain"
)

// MessageType — тип события.
type MessageType string

const (
	MessageTypeTaskStatus  MessageType = "task.status"
	MessageTypeRunFinished MessageType = "run.finished"
)

// Message — конверт события.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// TaskStatusPayload — смена статуса задачи.
type TaskStatusPayload struct {
	TaskID   uuid.UUID         `json:"task_id"`
	RunID    uuid.UUID         `json:"run_id,omitempty"`
	Queue    string            `json:"queue"`
	Command  string            `json:"command"`
	Status   domain.TaskStatus `json:"status"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration_ns,omitempty"`
}

// RunFinishedPayload — завершение запуска рецепта.
type RunFinishedPayload struct {
	RunID    uuid.UUID        `json:"run_id"`
	Flowcell string           `json:"flowcell"`
	Recipe   string           `json:"recipe"`
	Status   domain.RunStatus `json:"status"`
	Error    string           `json:"error,omitempty"`
}

// Publisher публикует события секвенатора.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт публикатор.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует событие в обменник.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	err = ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
	}

	p.logger.Debug("event published", "exchange", exchange, "type", msg.Type, "message_id", msg.ID)
	return nil
}

// PublishTaskStatus публикует смену статуса задачи.
func (p *Publisher) PublishTaskStatus(ctx context.Context, task *domain.Task) error {
	return p.Publish(ctx, ExchangeTasks, RoutingKeyStatus, &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeTaskStatus,
		Payload: TaskStatusPayload{
			TaskID:   task.ID,
			RunID:    task.RunID,
			Queue:    task.Queue,
			Command:  task.Command,
			Status:   task.Status(),
			Error:    task.Err(),
			Duration: task.Duration(),
		},
		Timestamp: time.Now(),
	})
}

// PublishRunFinished публикует завершение запуска.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.Run) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyStatus, &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeRunFinished,
		Payload: RunFinishedPayload{
			RunID:    run.ID,
			Flowcell: run.Flowcell,
			Recipe:   run.Recipe,
			Status:   run.Status(),
			Error:    run.Err(),
		},
		Timestamp: time.Now(),
	})
}
