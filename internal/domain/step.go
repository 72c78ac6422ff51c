package domain

// StepKind — вид скомпилированного шага рецепта.
type StepKind string

const (
	// StepPump — прокачка реагента через флоуселл.
	StepPump StepKind = "pump"

	// StepTemperature — установка температуры флоуселла.
	StepTemperature StepKind = "temperature"

	// StepHold — пауза заданной длительности.
	StepHold StepKind = "hold"

	// StepWait — ожидание внешнего сигнала (другой флоуселл или подсистема).
	StepWait StepKind = "wait"

	// StepUser — ожидание подтверждения оператора.
	StepUser StepKind = "user"

	// StepImage — съёмка одного ROI.
	StepImage StepKind = "image"

	// StepExpose — экспонирование одного ROI без съёмки.
	StepExpose StepKind = "expose"

	// StepFocus — автофокусировка на одном ROI.
	StepFocus StepKind = "focus"
)

// Step — скомпилированный шаг рецепта.
//
// Компилятор разворачивает текст рецепта в плоский список шагов:
// клапанные шаги свёрнуты в параметры следующей прокачки, шаги съёмки
// размножены по ROI, циклы реплицированы. Зависимости заданы индексами
// предшествующих шагов в том же списке. После компиляции шаг неизменяем.
type Step struct {
	// Index — позиция шага в скомпилированном списке.
	Index int `json:"index"`

	// Cycle — номер цикла (с 1), породившего шаг. 0 вне циклов.
	Cycle int `json:"cycle,omitempty"`

	// Flowcell — флоуселл, к которому относится шаг.
	Flowcell string `json:"flowcell"`

	// Kind — вид шага.
	Kind StepKind `json:"kind"`

	// Args — полностью разрешённые аргументы. Для прокачки сюда уже
	// подставлены порт реагента и скорость потока.
	Args map[string]any `json:"args,omitempty"`

	// ROI — регион интереса для шагов съёмки, nil для остальных.
	ROI *ROI `json:"roi,omitempty"`

	// Description — человекочитаемое описание шага.
	Description string `json:"description"`

	// DependsOn — индексы шагов, которые должны завершиться раньше.
	DependsOn []int `json:"depends_on,omitempty"`
}

// IsImaging возвращает true для шагов, требующих микроскоп.
func (s *Step) IsImaging() bool {
	switch s.Kind {
	case StepImage, StepExpose, StepFocus:
		return true
	default:
		return false
	}
}
