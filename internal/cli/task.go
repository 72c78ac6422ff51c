package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для отдельных задач.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage individual tasks",
	}

	cmd.AddCommand(
		newTaskDeleteCmd(clientFn, outputFn),
		newTaskReorderCmd(clientFn, outputFn),
		newTaskConfirmCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID",
		Short: "Delete a pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTask(args[0]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Task %s deleted", args[0]))
			return nil
		},
	}
}

func newTaskReorderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder TASK_ID INDEX",
		Short: "Move a pending task to a new position in its queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}

			if err := client.ReorderTask(args[0], index); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Task %s moved to position %d", args[0], index))
			return nil
		},
	}
}

func newTaskConfirmCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm TASK_ID",
		Short: "Confirm an operator prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ConfirmTask(args[0]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Task %s confirmed", args[0]))
			return nil
		},
	}
}
