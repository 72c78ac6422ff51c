// Package cli реализует инструмент командной строки Sequora.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Sequora API.
// Работает через HTTP, не импортирует внутренние пакеты контроллера.
// CLI используется для наблюдения за очередями задач, их мутации,
// запуска рецептов и подтверждений оператора.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Sequora API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	queues, err := client.ListQueues()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: sequora queue list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - queue: list, tasks, pause, resume, clear
//   - task: delete, reorder, confirm
//   - run: start, list, show, log
//   - status, experiment load
//
// Каждая группа создаётся через фабричную функцию (NewQueueCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
