package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewROICmd создаёт группу команд управления ROI.
func NewROICmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roi",
		Short: "Manage regions of interest",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list FLOWCELL",
		Short: "List ROIs of a flowcell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			rois, err := client.ListROIs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NAME", "X", "Y", "Z"}
			rows := make([][]string, len(rois))
			for i, r := range rois {
				rows[i] = []string{
					r.Name,
					fmt.Sprintf("%.0f..%.0f", r.Stage.XInit, r.Stage.XLast),
					fmt.Sprintf("%.0f..%.0f", r.Stage.YInit, r.Stage.YLast),
					strconv.FormatFloat(r.Stage.ZInit, 'f', -1, 64),
				}
			}
			out.Print(headers, rows, rois)
			return nil
		},
	})

	var roiFile string
	setCmd := &cobra.Command{
		Use:   "set FLOWCELL",
		Short: "Add or replace a ROI from a JSON file (refused while the flowcell is busy)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(roiFile)
			if err != nil {
				return err
			}
			if err := client.SetROI(args[0], data); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("ROI set on flowcell %s", args[0]))
			return nil
		},
	}
	setCmd.Flags().StringVar(&roiFile, "file", "", "Path to the ROI JSON file")
	setCmd.MarkFlagRequired("file")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove FLOWCELL NAME",
		Short: "Remove a ROI (refused while the flowcell is busy)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.RemoveROI(args[0], args[1]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("ROI %s removed from flowcell %s", args[1], args[0]))
			return nil
		},
	})

	return cmd
}
