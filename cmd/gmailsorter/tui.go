package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gmailsorter/internal/gmail"
	"gmailsorter/internal/sorter"
	"gmailsorter/internal/store"
	"gmailsorter/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse rules and run cleanups in a terminal UI",
		Args:  cobra.NoArgs,
		// Logs would draw over the alternate screen.
		Annotations: map[string]string{annotationLogToFile: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.invoke(func(mb *gmail.Mailbox, st *store.SQLiteStore, svc *sorter.Service) error {
				appModel := tui.NewAppModel(mb, st, svc)
				p := tea.NewProgram(&appModel, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
				finalModel, err := p.Run()
				if err != nil {
					return fmt.Errorf("terminal UI: %w", err)
				}
				if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
					return m.Err
				}
				return nil
			})
		},
	}
}
