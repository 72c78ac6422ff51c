// Пакет recipe читает рецепты и компилирует их в плоские списки шагов.
//
// Рецепт — YAML документ с именем, числом циклов и списком шагов.
// Каждый шаг — пара «глагол: параметры»:
//
//	name: hybridization
//	cycles: 4
//	steps:
//	  - VALVE: wash
//	  - PUMP: 500
//	  - TEMP: 37
//	  - HOLD: 600
//	  - WAIT: microscope
//	  - IMAGE: 3
//
// Параметры допускают краткую скалярную форму: число для PUMP — объём,
// для HOLD — длительность в секундах, для TEMP — температура, для
// IMAGE — число z-плоскостей. VALVE не порождает собственного шага:
// выбранный реагент подставляется в следующую прокачку.
//
// Компилятор разрешает ссылки на реагенты и ROI, валидирует параметры
// по машинным таблицам и разворачивает циклы. Ошибки всех шагов
// собираются и возвращаются одним списком с номерами шагов.
package recipe
