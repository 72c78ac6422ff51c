// Пакет dispatch отправляет команды инструментам.
//
// Диспетчер — единственная точка контакта очередей задач с железом.
// Очередь отдаёт команду с таймаутом и получает результат либо
// типизированную ошибку: DispatchError при отказе инструмента,
// TimeoutError при превышении таймаута.
//
// Инструменты на одной последовательной линии не могут обмениваться
// данными одновременно. LineGuard сериализует доступ к линии:
// конкурентные команды на разные линии идут параллельно, на одну
// линию — по очереди.
package dispatch
