package main

import "github.com/spf13/cobra"

func usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Print the user's processed/accepted/rejected counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := userID(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Usage.Usage(cmd.Context(), user)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}
