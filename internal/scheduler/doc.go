// Package scheduler запускает сервисные рецепты по расписанию.
//
// Задания обслуживания (промывка линий, прогрев лазеров) описываются
// в конфигурации эксперимента cron-выражениями. Scheduler раз в тик
// проверяет просроченные задания и запускает их рецепты через
// оркестратор.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, processJob)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Jobs:      exp.Maintenance,
//	    Flowcells: exp.Flowcells,
//	    Runner:    orch,
//	    Logger:    logger,
//	})
//
//	go sched.Run(ctx) // тик раз в 30 секунд
//
// Занятый флоуселл задание пропускает: сервисный рецепт не должен
// вклиниваться в идущий эксперимент. Пропущенное задание переносится
// на следующее время по cron.
package scheduler
