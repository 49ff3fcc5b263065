package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chute/internal/tasks"
)

func newTasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the built-in tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(tasks.Names()))
			for _, name := range tasks.Names() {
				task, err := tasks.New(name, ".")
				if err != nil {
					return err
				}
				rows = append(rows, []string{name, task.Description()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Task", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
