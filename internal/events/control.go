package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ControlAction — действие команды дистанционного управления.
type ControlAction string

const (
	ActionPause   ControlAction = "pause"
	ActionResume  ControlAction = "resume"
	ActionConfirm ControlAction = "confirm"
	ActionClear   ControlAction = "clear"
)

// ControlPayload — команда управления секвенатором.
// Пустой флоуселл адресует все очереди.
type ControlPayload struct {
	Action   ControlAction `json:"action"`
	Flowcell string        `json:"flowcell,omitempty"`
	TaskID   uuid.UUID     `json:"task_id,omitempty"`
}

// Controller — операции, доступные дистанционному управлению.
// Реализуется оркестратором.
type Controller interface {
	PauseAll()
	ResumeAll()
	PauseFlowcell(flowcell string) error
	ResumeFlowcell(flowcell string) error
	Confirm(taskID uuid.UUID) error
	ClearAll() int
}

// NewControlConsumer создаёт потребителя команд управления.
func NewControlConsumer(conn *Connection, ctrl Controller, logger *slog.Logger) *Consumer {
	return NewConsumer(conn, QueueControl, func(ctx context.Context, msg *Message) error {
		return ApplyControl(ctrl, msg)
	}, logger)
}

// ApplyControl применяет команду управления.
func ApplyControl(ctrl Controller, msg *Message) error {
	payload, err := ParsePayload[ControlPayload](msg)
	if err != nil {
		return err
	}

	switch payload.Action {
	case ActionPause:
		if payload.Flowcell == "" {
			ctrl.PauseAll()
			return nil
		}
		return ctrl.PauseFlowcell(payload.Flowcell)
	case ActionResume:
		if payload.Flowcell == "" {
			ctrl.ResumeAll()
			return nil
		}
		return ctrl.ResumeFlowcell(payload.Flowcell)
	case ActionConfirm:
		return ctrl.Confirm(payload.TaskID)
	case ActionClear:
		ctrl.ClearAll()
		return nil
	default:
		return fmt.Errorf("неизвестное действие %q", payload.Action)
	}
}
