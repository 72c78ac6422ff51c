package param

import (
	"fmt"
	"strings"
)

// Kind — вид спецификации параметра.
type Kind string

const (
	// KindRange — числовой диапазон min/max.
	KindRange Kind = "range"

	// KindEnum — список допустимых значений.
	KindEnum Kind = "enum"
)

// Spec — спецификация одного параметра команды.
//
// Для диапазона заполняются Min, Max и Unit.
// Для перечисления заполняется ValidSet.
// Spec неизменяема после загрузки конфигурации машины.
type Spec struct {
	// Min — нижняя граница (включительно).
	Min float64 `yaml:"min_val" json:"min_val"`

	// Max — верхняя граница (включительно).
	Max float64 `yaml:"max_val" json:"max_val"`

	// Unit — единица измерения (uL, uL/min, C, mW, ...).
	// Включается в сообщение об ошибке.
	Unit string `yaml:"unit" json:"unit,omitempty"`

	// ValidSet — допустимые значения для перечислимых параметров
	// (номера портов, имена фильтров).
	ValidSet []any `yaml:"valid_list" json:"valid_list,omitempty"`
}

// Kind возвращает вид спецификации.
// Непустой ValidSet всегда трактуется как перечисление.
func (s *Spec) Kind() Kind {
	if len(s.ValidSet) > 0 {
		return KindEnum
	}
	return KindRange
}

// Range создаёт диапазонную спецификацию.
func Range(min, max float64, unit string) Spec {
	return Spec{Min: min, Max: max, Unit: unit}
}

// Enum создаёт перечислимую спецификацию.
func Enum(values ...any) Spec {
	return Spec{ValidSet: values}
}

// Validate проверяет значение value параметра name против спецификации.
//
// Возвращает nil, если значение допустимо, *RangeError или *EnumError
// в противном случае. Само значение никогда не изменяется.
func Validate(name string, value any, spec Spec) error {
	if spec.Kind() == KindEnum {
		return validateEnum(name, value, spec)
	}
	return validateRange(name, value, spec)
}

// ValidateFloat — диапазонная проверка для уже приведённого числа.
func ValidateFloat(name string, value float64, spec Spec) error {
	if value < spec.Min || value > spec.Max {
		return &RangeError{Name: name, Value: value, Spec: spec}
	}
	return nil
}

// validateRange приводит значение к float64 и проверяет границы.
func validateRange(name string, value any, spec Spec) error {
	v, ok := asFloat(value)
	if !ok {
		return &RangeError{Name: name, Value: value, Spec: spec, NotNumeric: true}
	}
	return ValidateFloat(name, v, spec)
}

// validateEnum проверяет вхождение значения в ValidSet.
// Числа сравниваются по значению (5 и 5.0 эквивалентны),
// остальные типы — через fmt.Sprint.
func validateEnum(name string, value any, spec Spec) error {
	for _, valid := range spec.ValidSet {
		if equal(value, valid) {
			return nil
		}
	}
	return &EnumError{Name: name, Value: value, Spec: spec}
}

// equal сравнивает значение с элементом ValidSet.
func equal(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// asFloat приводит числовые типы, приходящие из YAML/TOML/JSON, к float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// formatSet форматирует ValidSet для сообщения об ошибке.
func formatSet(set []any) string {
	parts := make([]string, len(set))
	for i, v := range set {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
