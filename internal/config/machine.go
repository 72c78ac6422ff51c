package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Sequora/internal/domain"
	"github.com/shaiso/Sequora/internal/param"
)

var (
	ErrUnknownInstrument = errors.New("инструмент не найден")
	ErrUnknownCommand    = errors.New("команда не найдена")
	ErrUnknownFlowcell   = errors.New("флоуселл не найден")
)

// CommandSpec — таблица допустимых параметров одной команды инструмента.
// Ключ — имя параметра.
type CommandSpec map[string]param.Spec

// Instrument — описание одного инструмента в машинной конфигурации.
type Instrument struct {
	// Subsystem — вид подсистемы, которой принадлежит инструмент.
	Subsystem domain.SubsystemKind `yaml:"subsystem"`

	// Flowcell — флоуселл-владелец. Пусто для инструментов микроскопа.
	Flowcell string `yaml:"flowcell,omitempty"`

	// Address — адрес последовательной линии ("COM3", "/dev/ttyUSB0").
	// Инструменты на одной линии разделяют один канал связи.
	Address string `yaml:"address"`

	// Baudrate — скорость линии. 0 означает 9600.
	Baudrate int `yaml:"baudrate,omitempty"`

	// Commands — команды инструмента и их таблицы параметров.
	Commands map[string]CommandSpec `yaml:"commands"`
}

// Machine — машинная конфигурация секвенатора.
type Machine struct {
	// Name — модель прибора.
	Name string `yaml:"name"`

	// Flowcells — имена флоуселлов ("A", "B").
	Flowcells []string `yaml:"flowcells"`

	// Instruments — инструменты по именам ("PumpA", "Camera").
	Instruments map[string]Instrument `yaml:"instruments"`
}

// LoadMachine читает машинную конфигурацию из YAML файла.
func LoadMachine(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machine config: %w", err)
	}

	var m Machine
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse machine config: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate проверяет согласованность машинной конфигурации:
// флоуселлы инструментов объявлены, обязательные подсистемы флоуселлов
// на месте, границы параметров не вырождены.
func (m *Machine) Validate() error {
	if len(m.Flowcells) == 0 {
		return fmt.Errorf("machine config: флоуселлы не объявлены")
	}

	known := make(map[string]bool, len(m.Flowcells))
	for _, fc := range m.Flowcells {
		known[fc] = true
	}

	perFlowcell := make(map[string]map[domain.SubsystemKind]bool)
	for name, inst := range m.Instruments {
		if inst.Subsystem == "" {
			return fmt.Errorf("machine config: инструмент %s без подсистемы", name)
		}
		if inst.Flowcell != "" {
			if !known[inst.Flowcell] {
				return fmt.Errorf("machine config: инструмент %s: %w: %s",
					name, ErrUnknownFlowcell, inst.Flowcell)
			}
			if perFlowcell[inst.Flowcell] == nil {
				perFlowcell[inst.Flowcell] = make(map[domain.SubsystemKind]bool)
			}
			perFlowcell[inst.Flowcell][inst.Subsystem] = true
		}
		for cmd, spec := range inst.Commands {
			for pname, ps := range spec {
				if ps.Kind() == param.KindRange && ps.Min > ps.Max {
					return fmt.Errorf("machine config: %s.%s.%s: min %v больше max %v",
						name, cmd, pname, ps.Min, ps.Max)
				}
			}
		}
	}

	for _, fc := range m.Flowcells {
		for _, kind := range domain.FlowcellSubsystems {
			if !perFlowcell[fc][kind] {
				return fmt.Errorf("machine config: у флоуселла %s нет подсистемы %s", fc, kind)
			}
		}
	}
	return nil
}

// InstrumentFor возвращает имя и описание инструмента подсистемы.
// Для подсистем флоуселла flowcell обязателен, для микроскопа игнорируется.
func (m *Machine) InstrumentFor(flowcell string, kind domain.SubsystemKind) (string, *Instrument, error) {
	for name, inst := range m.Instruments {
		if inst.Subsystem != kind {
			continue
		}
		if inst.Flowcell != "" && inst.Flowcell != flowcell {
			continue
		}
		return name, &inst, nil
	}
	return "", nil, fmt.Errorf("%w: подсистема %s флоуселла %s", ErrUnknownInstrument, kind, flowcell)
}

// CommandSpecFor возвращает таблицу параметров команды инструмента.
func (m *Machine) CommandSpecFor(instrument, command string) (CommandSpec, error) {
	inst, ok := m.Instruments[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, instrument)
	}
	spec, ok := inst.Commands[command]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownCommand, instrument, command)
	}
	return spec, nil
}

// ValidateArgs проверяет аргументы команды по таблице параметров
// инструмента. Неизвестные таблице аргументы — ошибка.
func (m *Machine) ValidateArgs(instrument, command string, args map[string]any) error {
	spec, err := m.CommandSpecFor(instrument, command)
	if err != nil {
		return err
	}
	for name, value := range args {
		ps, ok := spec[name]
		if !ok {
			return fmt.Errorf("команда %s.%s: неизвестный параметр %q", instrument, command, name)
		}
		if err := param.Validate(name, value, ps); err != nil {
			return fmt.Errorf("команда %s.%s: %w", instrument, command, err)
		}
	}
	return nil
}

// HasFlowcell возвращает true, если флоуселл объявлен в конфигурации.
func (m *Machine) HasFlowcell(name string) bool {
	for _, fc := range m.Flowcells {
		if fc == name {
			return true
		}
	}
	return false
}
