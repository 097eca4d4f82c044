package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gmailsorter/internal/gmail"
	"gmailsorter/internal/model"
)

func newLabelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List or create Gmail labels",
	}
	cmd.AddCommand(newLabelsListCmd(a), newLabelsCreateCmd(a))
	return cmd
}

func newLabelsListCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List labels a rule can target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.invoke(func(mb *gmail.Mailbox) error {
				labels, err := mb.ListLabels(cmd.Context())
				if err != nil {
					return err
				}
				if !all {
					labels = gmail.EditableLabels(labels)
				}
				return writeLabels(cmd.OutOrStdout(), labels)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include every system label")
	return cmd
}

func writeLabels(w io.Writer, labels []model.Label) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range gmail.GroupLabels(labels) {
		if g.Label != nil {
			fmt.Fprintf(tw, "%s\t%s\n", g.Root, g.Label.ID)
		} else {
			fmt.Fprintf(tw, "%s\t\n", g.Root)
		}
		for _, c := range g.Children {
			fmt.Fprintf(tw, "  %s\t%s\n", gmail.LeafName(c.Name), c.ID)
		}
	}
	return tw.Flush()
}

func newLabelsCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a user label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(func(mb *gmail.Mailbox) error {
				l, err := mb.CreateLabel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created label %s (%s)\n", l.Name, l.ID)
				return nil
			})
		},
	}
}
