package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки диспетчеризации.
var (
	// ErrDispatch — инструмент отверг команду или не ответил.
	ErrDispatch = errors.New("dispatch failed")

	// ErrTimeout — команда не завершилась за отведённый таймаут.
	ErrTimeout = errors.New("dispatch timeout")
)

// DispatchError — отказ инструмента при выполнении команды.
type DispatchError struct {
	Instrument string
	Command    string
	Cause      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s.%s: %v", e.Instrument, e.Command, e.Cause)
}

func (e *DispatchError) Unwrap() error { return ErrDispatch }

// TimeoutError — команда не уложилась в таймаут.
type TimeoutError struct {
	Instrument string
	Command    string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dispatch %s.%s: таймаут %s истёк", e.Instrument, e.Command, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
