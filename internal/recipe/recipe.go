package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry — один шаг рецепта до компиляции: глагол и сырые параметры.
type Entry struct {
	Verb   string
	Params any
}

// Recipe — разобранный, но ещё не скомпилированный рецепт.
type Recipe struct {
	Name   string
	Cycles int
	Steps  []Entry
}

// rawRecipe — схема YAML документа рецепта.
type rawRecipe struct {
	Name   string           `yaml:"name"`
	Cycles int              `yaml:"cycles"`
	Steps  []map[string]any `yaml:"steps"`
}

// Load читает рецепты из YAML файла. Файл может содержать несколько
// документов, каждый документ — отдельный рецепт.
func Load(path string) ([]*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	return Parse(data)
}

// Parse разбирает рецепты из YAML.
func Parse(data []byte) ([]*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var recipes []*Recipe
	for i := 0; ; i++ {
		var raw rawRecipe
		err := dec.Decode(&raw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse recipe: %w", err)
		}

		rec := &Recipe{
			Name:   raw.Name,
			Cycles: raw.Cycles,
		}
		if rec.Name == "" {
			rec.Name = fmt.Sprintf("recipe_%d", i+1)
		}
		if rec.Cycles == 0 {
			rec.Cycles = 1
		}

		for n, step := range raw.Steps {
			if len(step) != 1 {
				return nil, fmt.Errorf("%s: шаг %d: ожидается ровно один глагол, получено %d",
					rec.Name, n+1, len(step))
			}
			for verb, params := range step {
				rec.Steps = append(rec.Steps, Entry{Verb: verb, Params: params})
			}
		}
		recipes = append(recipes, rec)
	}

	if len(recipes) == 0 {
		return nil, fmt.Errorf("parse recipe: файл не содержит рецептов")
	}
	return recipes, nil
}

// ByName ищет рецепт в списке по имени.
func ByName(recipes []*Recipe, name string) (*Recipe, bool) {
	for _, r := range recipes {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}
