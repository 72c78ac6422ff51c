// Sequora CLI — инструмент командной строки для управления
// очередями задач, рецептами и экспериментом через HTTP API.
//
// Использование:
//
//	sequora [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	queue       Управление очередями задач
//	task        Управление отдельными задачами
//	run         Управление запусками рецептов
//	roi         Управление регионами интереса
//	experiment  Загрузка эксперимента
//	status      Сводка состояния контроллера
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Sequora/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "sequora",
		Short:         "Sequora CLI — sequencing instrument control tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewQueueCmd(clientFn, outputFn),
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewROICmd(clientFn, outputFn),
		cli.NewExperimentCmd(clientFn, outputFn),
		cli.NewStatusCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
