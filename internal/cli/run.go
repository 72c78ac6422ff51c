package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для запусков рецептов.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage recipe runs",
	}

	cmd.AddCommand(
		newRunStartCmd(clientFn, outputFn),
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunLogCmd(clientFn, outputFn),
	)

	return cmd
}

func runRow(r RunResponse) []string {
	return []string{
		r.ID, r.Flowcell, r.Recipe, strconv.Itoa(r.Cycles), r.Status,
		fmt.Sprintf("%.0f%%", r.Progress*100), r.CreatedAt,
	}
}

var runHeaders = []string{"ID", "FLOWCELL", "RECIPE", "CYCLES", "STATUS", "PROGRESS", "CREATED"}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var recipe string
	var name string
	var cycles int

	cmd := &cobra.Command{
		Use:   "start FLOWCELL",
		Short: "Compile a recipe and enqueue its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.RunRecipe(RunRecipeRequest{
				Flowcell: args[0],
				Recipe:   recipe,
				Name:     name,
				Cycles:   cycles,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s (%d tasks)", run.ID, run.Tasks))
			out.Print(runHeaders, [][]string{runRow(*run)}, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&recipe, "recipe", "", "Recipe file (experiment recipe if not specified)")
	cmd.Flags().StringVar(&name, "name", "", "Recipe name inside a multi-document file")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "Cycle count override")

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns()
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}
			out.Print(runHeaders, rows, runs)
			return nil
		},
	}
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run with its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "QUEUE", "COMMAND", "STATUS", "ERROR"}
			rows := make([][]string, len(run.TaskList))
			for i, t := range run.TaskList {
				rows[i] = []string{t.ID, t.Queue, t.Command, t.Status, t.Error}
			}

			out.Success(fmt.Sprintf("Run %s: %s %s", run.ID, run.Recipe, run.Status))
			out.Print(headers, rows, run)
			return nil
		},
	}
}

func newRunLogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "log RUN_ID",
		Short: "Show the persisted task log of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.GetRunLog(args[0])
			if err != nil {
				return err
			}

			headers := []string{"LOGGED", "TASK_ID", "QUEUE", "COMMAND", "STATUS", "ERROR"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{e.LoggedAt, e.TaskID, e.Queue, e.Command, e.Status, e.Error}
			}
			out.Print(headers, rows, entries)
			return nil
		},
	}
}
