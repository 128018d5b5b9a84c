package main

import (
	"sort"

	"github.com/spf13/cobra"
)

func healthCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the health record of every ensemble",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records := root.factory.HealthRecords()
			names := make([]string, 0, len(records))
			for name := range records {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				r := records[name]
				printf(cmd, "%s\thealthy=%t\tfailures=%d\tcategory=%s\treason=%q\n",
					name, r.IsHealthy, r.ConsecutiveFailures, r.FailureCategory, r.FailureReason)
			}
			return nil
		},
	}
}
