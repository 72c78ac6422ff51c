package domain

// SubsystemKind — вид листовой подсистемы секвенатора.
//
// Каждой подсистеме принадлежит собственная очередь задач.
// Флоуселл владеет насосом, клапаном и термоконтроллером;
// микроскоп — стейджами, камерой, лазером и оптикой.
type SubsystemKind string

const (
	SubsystemPump           SubsystemKind = "pump"
	SubsystemValve          SubsystemKind = "valve"
	SubsystemTempController SubsystemKind = "temp_controller"
	SubsystemXStage         SubsystemKind = "x_stage"
	SubsystemYStage         SubsystemKind = "y_stage"
	SubsystemZStage         SubsystemKind = "z_stage"
	SubsystemObjStage       SubsystemKind = "obj_stage"
	SubsystemCamera         SubsystemKind = "camera"
	SubsystemLaser          SubsystemKind = "laser"
	SubsystemShutter        SubsystemKind = "shutter"
	SubsystemFilterWheel    SubsystemKind = "filter_wheel"

	// SubsystemControl — виртуальная подсистема управляющих задач
	// (hold, wait, user, reserve, release). Инструмента за ней нет.
	SubsystemControl SubsystemKind = "control"
)

// FlowcellSubsystems — подсистемы, принадлежащие флоуселлу.
var FlowcellSubsystems = []SubsystemKind{
	SubsystemPump,
	SubsystemValve,
	SubsystemTempController,
}

// MicroscopeSubsystems — подсистемы, принадлежащие микроскопу.
var MicroscopeSubsystems = []SubsystemKind{
	SubsystemXStage,
	SubsystemYStage,
	SubsystemZStage,
	SubsystemObjStage,
	SubsystemCamera,
	SubsystemLaser,
	SubsystemShutter,
	SubsystemFilterWheel,
}
