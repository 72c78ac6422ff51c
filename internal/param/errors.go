package param

import (
	"errors"
	"fmt"
)

// Сентинели для errors.Is.
var (
	// ErrOutOfRange — значение вне диапазона min/max.
	ErrOutOfRange = errors.New("value out of range")

	// ErrNotInSet — значение отсутствует в списке допустимых.
	ErrNotInSet = errors.New("value not in valid set")
)

// RangeError — нарушение диапазонной спецификации.
type RangeError struct {
	// Name — имя параметра (flow_rate, volume, ...).
	Name string

	// Value — отвергнутое значение.
	Value any

	// Spec — спецификация, против которой проводилась проверка.
	Spec Spec

	// NotNumeric — true, если значение вообще не число.
	NotNumeric bool
}

// Error реализует интерфейс error.
// Сообщение включает единицу измерения из спецификации.
func (e *RangeError) Error() string {
	if e.NotNumeric {
		return fmt.Sprintf("%s: %v is not numeric, expected %g to %g %s",
			e.Name, e.Value, e.Spec.Min, e.Spec.Max, e.Spec.Unit)
	}
	return fmt.Sprintf("%s: %v out of range %g to %g %s",
		e.Name, e.Value, e.Spec.Min, e.Spec.Max, e.Spec.Unit)
}

// Unwrap возвращает сентинель ErrOutOfRange.
func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

// EnumError — нарушение перечислимой спецификации.
type EnumError struct {
	// Name — имя параметра (port, filter, ...).
	Name string

	// Value — отвергнутое значение.
	Value any

	// Spec — спецификация, против которой проводилась проверка.
	Spec Spec
}

// Error реализует интерфейс error.
func (e *EnumError) Error() string {
	return fmt.Sprintf("%s: %v not in valid set [%s]",
		e.Name, e.Value, formatSet(e.Spec.ValidSet))
}

// Unwrap возвращает сентинель ErrNotInSet.
func (e *EnumError) Unwrap() error {
	return ErrNotInSet
}
