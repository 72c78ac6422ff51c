// Пакет events — интеграция секвенатора с RabbitMQ.
//
// Наружу публикуются события смены статусов задач и завершения
// запусков: внешние системы (LIMS, мониторинг) подписываются на них,
// не опрашивая API. Внутрь принимаются команды дистанционного
// управления: пауза, возобновление, подтверждение оператора.
//
// Exchanges:
//   - sequora.tasks   — события задач
//   - sequora.runs    — события запусков
//   - sequora.control — команды управления
//
// Подключение переживает разрывы: соединение переустанавливается
// с экспоненциальной задержкой, потребители перезапускаются.
package events
