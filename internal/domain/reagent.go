package domain

import "fmt"

// Reagent — реагент, подключённый к порту клапана флоуселла.
//
// Имя и порт уникальны в пределах флоуселла. Скорость потока по
// умолчанию используется прокачкой, если рецепт не задал свою.
type Reagent struct {
	// Flowcell — флоуселл, к клапану которого подключён реагент.
	Flowcell string `json:"flowcell" toml:"-"`

	// Name — уникальное имя реагента.
	Name string `json:"name" toml:"name"`

	// Port — номер порта клапана.
	Port int `json:"port" toml:"port"`

	// FlowRate — скорость потока по умолчанию, мкл/мин.
	FlowRate float64 `json:"flow_rate" toml:"flow_rate"`

	// PauseSec — пауза после прокачки, с.
	PauseSec float64 `json:"pause_sec,omitempty" toml:"pause_sec"`
}

func (r *Reagent) String() string {
	return fmt.Sprintf("%s (порт %d)", r.Name, r.Port)
}
