package domain

import "math"

// Optics — оптические параметры съёмки: экспозиция, мощность лазера,
// цвет лазерной линии и фильтр.
type Optics struct {
	// Exposure — время экспозиции камеры, мс.
	Exposure float64 `json:"exposure" toml:"exposure"`

	// LaserPower — мощность лазера, мВт.
	LaserPower float64 `json:"laser_power" toml:"laser_power"`

	// LaserColor — лазерная линия ("green", "red", ...).
	LaserColor string `json:"laser_color" toml:"laser_color"`

	// Filter — фильтр на колесе ("open", "0.6", ...).
	Filter string `json:"filter" toml:"filter"`
}

// StageRegion — прямоугольная область стейджа, покрываемая тайлами.
//
// Позиции в шагах моторов. Число тайлов по осям вычисляется из шага
// поля зрения и перекрытия.
type StageRegion struct {
	XInit    float64 `json:"x_init" toml:"x_init"`
	XLast    float64 `json:"x_last" toml:"x_last"`
	YInit    float64 `json:"y_init" toml:"y_init"`
	YLast    float64 `json:"y_last" toml:"y_last"`
	ZInit    float64 `json:"z_init" toml:"z_init"`
	NZ       int     `json:"nz" toml:"nz"`
	ZStep    float64 `json:"z_step" toml:"z_step"`
	XStep    float64 `json:"x_step" toml:"x_step"`
	YStep    float64 `json:"y_step" toml:"y_step"`
	XOverlap float64 `json:"x_overlap" toml:"x_overlap"`
	YOverlap float64 `json:"y_overlap" toml:"y_overlap"`
}

// NX возвращает число тайлов по X.
func (r *StageRegion) NX() int {
	return tiles(r.XInit, r.XLast, r.XStep, r.XOverlap)
}

// NY возвращает число тайлов по Y.
func (r *StageRegion) NY() int {
	return tiles(r.YInit, r.YLast, r.YStep, r.YOverlap)
}

// TileX возвращает позицию X тайла i, от 0 до NX()-1.
func (r *StageRegion) TileX(i int) float64 {
	return tilePos(r.XInit, r.XLast, r.XStep, r.XOverlap, i)
}

// TileY возвращает позицию Y тайла j, от 0 до NY()-1.
func (r *StageRegion) TileY(j int) float64 {
	return tilePos(r.YInit, r.YLast, r.YStep, r.YOverlap, j)
}

// ZLast возвращает верхнюю позицию z-стека.
func (r *StageRegion) ZLast() float64 {
	return r.ZInit + r.ZStep*float64(r.NZ)
}

func tiles(init, last, step, overlap float64) int {
	if step <= overlap {
		return 1
	}
	n := int(math.Ceil(math.Abs(last-init) / (step - overlap)))
	if n < 1 {
		n = 1
	}
	return n
}

// tilePos размечает тайлы от init в сторону last с шагом поля зрения
// за вычетом перекрытия.
func tilePos(init, last, step, overlap float64, i int) float64 {
	stride := step - overlap
	if stride <= 0 {
		return init
	}
	if last < init {
		stride = -stride
	}
	return init + stride*float64(i)
}

// ImageParams — параметры съёмки ROI.
type ImageParams struct {
	Optics Optics `json:"optics" toml:"optics"`

	// NZ — число z-плоскостей.
	NZ int `json:"nz" toml:"nz"`
}

// FocusParams — параметры автофокусировки на ROI.
type FocusParams struct {
	Optics Optics `json:"optics" toml:"optics"`

	// Routine — процедура фокусировки:
	// "full", "partial", "full once" или "partial once".
	Routine string `json:"routine" toml:"routine"`

	// ZFocus — найденная позиция фокуса; -1, пока фокус не найден.
	ZFocus float64 `json:"z_focus" toml:"z_focus"`
}

// ExposeParams — параметры экспонирования ROI без съёмки.
type ExposeParams struct {
	Optics Optics `json:"optics" toml:"optics"`

	// NExposures — число экспозиций.
	NExposures int `json:"n_exposures" toml:"n_exposures"`
}

// ROI — регион интереса: область стейджа плюс параметры
// съёмки/фокусировки/экспонирования.
//
// Незаданные параметры наследуются от значений по умолчанию эксперимента
// при компиляции. После компиляции ROI неизменяем.
type ROI struct {
	// Name — уникальное в пределах флоуселла имя.
	Name string `json:"name"`

	// Flowcell — флоуселл, на котором расположен ROI.
	Flowcell string `json:"flowcell"`

	Stage  StageRegion  `json:"stage"`
	Image  ImageParams  `json:"image"`
	Focus  FocusParams  `json:"focus"`
	Expose ExposeParams `json:"expose"`
}

// FocusRoutines — допустимые процедуры автофокусировки.
var FocusRoutines = []string{"full once", "partial once", "full", "partial"}

// ValidFocusRoutine проверяет имя процедуры фокусировки.
func ValidFocusRoutine(routine string) bool {
	for _, r := range FocusRoutines {
		if r == routine {
			return true
		}
	}
	return false
}
