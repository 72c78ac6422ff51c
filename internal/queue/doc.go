// Пакет queue реализует очередь задач одной подсистемы.
//
// Очередь исполняет задачи строго по одной, в порядке списка ожидания.
// Голова списка не извлекается до момента запуска: пока задача ждёт
// зависимости или паузу, она остаётся PENDING и доступна для удаления
// и перестановки. Идентичность задачи при любых мутациях — её ID.
//
// Жизненный цикл очереди:
//
//	Enqueue → [PENDING ... ] → запуск головы → RUNNING → DONE/FAILED
//	             ↑ Reorder/Delete              (история)
//
// Задача с зависимостями не запускается, пока все зависимости не
// завершатся успешно. Упавшая или отменённая зависимость переводит
// задачу в FAILED без диспетчеризации.
package queue
