package config

import "github.com/shaiso/Sequora/internal/domain"

// InheritOptics заполняет нулевые поля dst значениями из base.
// Заданные поля dst не трогаются.
func InheritOptics(dst *domain.Optics, base domain.Optics) {
	if dst.Exposure == 0 {
		dst.Exposure = base.Exposure
	}
	if dst.LaserPower == 0 {
		dst.LaserPower = base.LaserPower
	}
	if dst.LaserColor == "" {
		dst.LaserColor = base.LaserColor
	}
	if dst.Filter == "" {
		dst.Filter = base.Filter
	}
}

// MergeArgs сливает слои аргументов слева направо: более поздние слои
// перекрывают более ранние. Вложенные словари сливаются рекурсивно,
// остальные значения замещаются. Исходные словари не модифицируются.
func MergeArgs(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				mergeInto(cur, sub)
				continue
			}
			cp := make(map[string]any, len(sub))
			mergeInto(cp, sub)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}
