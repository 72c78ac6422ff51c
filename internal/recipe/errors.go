package recipe

import (
	"errors"
	"fmt"
)

// Ошибки компиляции рецептов.
var (
	// ErrUnresolvedReference — ссылка на неизвестный реагент, ROI или рецепт.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrUnknownVerb — неизвестный глагол шага.
	ErrUnknownVerb = errors.New("unknown recipe verb")

	// ErrBadParams — параметры шага не разобраны.
	ErrBadParams = errors.New("bad step params")
)

// UnresolvedReferenceError — шаг ссылается на сущность, не объявленную
// в конфигурации эксперимента.
type UnresolvedReferenceError struct {
	Kind     string // "reagent", "roi", "recipe"
	Name     string
	Flowcell string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s %q не объявлен для флоуселла %s", e.Kind, e.Name, e.Flowcell)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }
