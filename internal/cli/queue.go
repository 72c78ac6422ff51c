package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewQueueCmd создаёт группу команд для очередей задач.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage task queues",
	}

	cmd.AddCommand(
		newQueueListCmd(clientFn, outputFn),
		newQueueTasksCmd(clientFn, outputFn),
		newQueuePauseCmd(clientFn, outputFn),
		newQueueResumeCmd(clientFn, outputFn),
		newQueueClearCmd(clientFn, outputFn),
	)

	return cmd
}

func newQueueListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List task queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			queues, err := client.ListQueues()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "SUBSYSTEM", "INSTRUMENT", "PAUSED", "DEPTH", "RUNNING"}
			rows := make([][]string, len(queues))
			for i, q := range queues {
				running := ""
				if q.Running != nil {
					running = q.Running.Command
				}
				rows[i] = []string{
					q.Name, q.Subsystem, q.Instrument,
					strconv.FormatBool(q.Paused), strconv.Itoa(q.Depth), running,
				}
			}

			out.Print(headers, rows, queues)
			return nil
		},
	}
}

func newQueueTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks NAME",
		Short: "Show tasks of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.QueueTasks(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "COMMAND", "STATUS", "DESCRIPTION", "ERROR"}
			var rows [][]string
			appendTask := func(t TaskResponse) {
				rows = append(rows, []string{t.ID, t.Command, t.Status, t.Description, t.Error})
			}
			if tasks.Running != nil {
				appendTask(*tasks.Running)
			}
			for _, t := range tasks.Pending {
				appendTask(t)
			}
			for _, t := range tasks.History {
				appendTask(t)
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}

func newQueuePauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowcell string

	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause all queues or one flowcell",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if flowcell != "" {
				if err := client.PauseFlowcell(flowcell); err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Flowcell %s paused", flowcell))
				return nil
			}

			if err := client.PauseAll(); err != nil {
				return err
			}
			out.Success("All queues paused")
			return nil
		},
	}

	cmd.Flags().StringVar(&flowcell, "flowcell", "", "Pause only this flowcell")

	return cmd
}

func newQueueResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowcell string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume all queues or one flowcell",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if flowcell != "" {
				if err := client.ResumeFlowcell(flowcell); err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Flowcell %s resumed", flowcell))
				return nil
			}

			if err := client.ResumeAll(); err != nil {
				return err
			}
			out.Success("All queues resumed")
			return nil
		},
	}

	cmd.Flags().StringVar(&flowcell, "flowcell", "", "Resume only this flowcell")

	return cmd
}

func newQueueClearCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all pending tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cleared, err := client.ClearAll()
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Cleared %d pending tasks", cleared))
			return nil
		},
	}
}
