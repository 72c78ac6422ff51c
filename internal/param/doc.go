// Package param валидирует значения параметров команд инструментов.
//
// Каждая физическая величина (объём, скорость потока, позиция стейджа,
// мощность лазера, температура, порт клапана) описывается спецификацией
// Spec — либо диапазоном min/max с единицей измерения, либо списком
// допустимых значений.
//
// Валидация детерминирована и не имеет побочных эффектов. Она выполняется
// дважды: при загрузке конфигурации и при компиляции рецепта, поэтому
// некорректное значение отлавливается до того, как инструменту будет
// отправлена хоть одна команда.
package param
