package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду сводки состояния контроллера.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show controller status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.Status()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Experiment: %s", status.Experiment))
			if status.MicroscopeOwner != "" {
				out.Success(fmt.Sprintf("Microscope reserved by flowcell %s", status.MicroscopeOwner))
			}
			for _, id := range status.AwaitingConfirmation {
				out.Success(fmt.Sprintf("Awaiting operator confirmation: task %s", id))
			}

			headers := []string{"QUEUE", "PAUSED", "DEPTH", "RUNNING"}
			rows := make([][]string, len(status.Queues))
			for i, q := range status.Queues {
				running := ""
				if q.Running != nil {
					running = q.Running.Command
				}
				rows[i] = []string{q.Name, strconv.FormatBool(q.Paused), strconv.Itoa(q.Depth), running}
			}
			out.Print(headers, rows, status)
			return nil
		},
	}
}

// NewExperimentCmd создаёт группу команд для эксперимента.
func NewExperimentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Manage the loaded experiment",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "load PATH",
		Short: "Load a new experiment config (refused while queues are busy)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.NewExperiment(args[0]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Experiment loaded from %s", args[0]))
			return nil
		},
	})

	return cmd
}
