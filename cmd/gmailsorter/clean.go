package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gmailsorter/internal/sorter"
)

func newCleanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Move inbox messages from known senders into their labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.invoke(func(svc *sorter.Service) error {
				rep := svc.Run(cmd.Context())
				if rep.Err != nil {
					return rep.Err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sorter.NoticeFor(rep).String())
				return nil
			})
		},
	}
}
