// Package api содержит HTTP API сервер контроллера.
//
// Структура:
//   - handler.go       — Handler с DI (оркестратор, репозитории, logger)
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (logging, recovery)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - queue_handler.go — обработчики очередей задач
//   - run_handler.go   — обработчики запусков, рецептов и эксперимента
//
// API предоставляет REST endpoints для наблюдения за очередями,
// их мутации, запуска рецептов и подтверждений оператора.
package api
