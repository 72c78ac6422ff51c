// Пакет config загружает и валидирует конфигурацию секвенатора.
//
// Конфигурация двухслойная:
//   - машинная (YAML) — инструменты, адреса, таблицы допустимых
//     параметров команд; поставляется вместе с прибором и между
//     экспериментами не меняется;
//   - экспериментальная (TOML) — реагенты, ROI, значения параметров
//     по умолчанию, рецепт и расписания обслуживания; задаётся
//     оператором на каждый эксперимент.
//
// Значения параметров разрешаются слоями: аргументы шага рецепта
// перекрывают параметры ROI, те перекрывают значения по умолчанию
// эксперимента.
package config
