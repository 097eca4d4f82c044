package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gmailsorter/internal/gmail"
	"gmailsorter/internal/model"
	"gmailsorter/internal/rules"
	"gmailsorter/internal/sorter"
	"gmailsorter/internal/store"
	"gmailsorter/internal/util"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Edit the sender rule table",
	}
	cmd.AddCommand(
		newRulesListCmd(a),
		newRulesAddCmd(a),
		newRulesRemoveCmd(a),
		newRulesImportCmd(a),
		newRulesExportCmd(a),
	)
	return cmd
}

// directory lists the mailbox labels. It is the only step in rule editing
// that needs Gmail.
func (a *app) directory(ctx context.Context) (*sorter.Directory, error) {
	var dir *sorter.Directory
	err := a.invoke(func(mb *gmail.Mailbox, logger *zap.Logger) error {
		var err error
		dir, err = sorter.LoadDirectory(ctx, mb, logger)
		return err
	})
	return dir, err
}

func (a *app) ruleStore() (*store.SQLiteStore, error) {
	var st *store.SQLiteStore
	err := a.invoke(func(s *store.SQLiteStore) { st = s })
	return st, err
}

// resolveLabel accepts a label id or a label name.
func resolveLabel(dir *sorter.Directory, label string) (string, error) {
	if _, ok := dir.Name(label); ok {
		return label, nil
	}
	if id, ok := dir.ID(label); ok {
		return id, nil
	}
	return "", fmt.Errorf("%q: %w", label, rules.ErrUnknownLabel)
}

func newRulesListCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the rule table in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.ruleStore()
			if err != nil {
				return err
			}
			table, err := st.ReadRuleTable(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if table.IsEmpty() {
				fmt.Fprintln(out, "No sender rules configured.")
				return nil
			}
			var dir *sorter.Directory
			if !offline {
				if dir, err = a.directory(cmd.Context()); err != nil {
					return err
				}
			}
			return writeTable(out, table, dir)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Show label ids without contacting Gmail")
	return cmd
}

// writeTable prints labels in table order with their senders. A nil dir
// prints ids only.
func writeTable(w io.Writer, table model.RuleTable, dir *sorter.Directory) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range table {
		switch name, ok := dir.Name(e.LabelID); {
		case ok:
			fmt.Fprintf(tw, "%s (%s)\t\n", name, e.LabelID)
		case dir == nil:
			fmt.Fprintf(tw, "%s\t\n", e.LabelID)
		default:
			fmt.Fprintf(tw, "%s (missing label, never matches)\t\n", e.LabelID)
		}
		for _, r := range e.Rules {
			fmt.Fprintf(tw, "  %s\t%s\n", r.SenderEmail, r.SenderName)
		}
	}
	return tw.Flush()
}

func newRulesAddCmd(a *app) *cobra.Command {
	var (
		name string
		byID bool
	)
	cmd := &cobra.Command{
		Use:   "add LABEL SENDER",
		Short: "Route mail from SENDER to LABEL",
		Long: "Route mail from SENDER to LABEL. LABEL is a label name or id; SENDER is an\n" +
			"address, optionally with a display name (\"Shop <orders@shop.com>\").",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			senderName, email := util.ParseFrom(args[1])
			if !util.ValidAddress(email) {
				return fmt.Errorf("%q: %w", args[1], store.ErrInvalidRule)
			}
			if name != "" {
				senderName = name
			}

			labelID := args[0]
			if !byID {
				dir, err := a.directory(cmd.Context())
				if err != nil {
					return err
				}
				if labelID, err = resolveLabel(dir, args[0]); err != nil {
					return err
				}
			}

			st, err := a.ruleStore()
			if err != nil {
				return err
			}
			if err := st.AddRule(cmd.Context(), labelID, model.SenderRule{SenderEmail: email, SenderName: senderName}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s → %s\n", email, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name for the sender")
	cmd.Flags().BoolVar(&byID, "id", false, "Treat LABEL as a label id and skip the Gmail lookup")
	return cmd
}

func newRulesRemoveCmd(a *app) *cobra.Command {
	var byID bool
	cmd := &cobra.Command{
		Use:   "remove LABEL SENDER",
		Short: "Delete the rule routing SENDER to LABEL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.ruleStore()
			if err != nil {
				return err
			}
			labelID := args[0]
			if !byID {
				table, err := st.ReadRuleTable(cmd.Context())
				if err != nil {
					return err
				}
				// Ids already in the table resolve offline, stale ones included.
				if table.Rules(labelID) == nil {
					dir, err := a.directory(cmd.Context())
					if err != nil {
						return err
					}
					if labelID, err = resolveLabel(dir, args[0]); err != nil {
						return err
					}
				}
			}
			if err := st.RemoveRule(cmd.Context(), labelID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[1], args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "Treat LABEL as a label id and skip the Gmail lookup")
	return cmd
}

func newRulesImportCmd(a *app) *cobra.Command {
	var merge bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load rules from a YAML document (- for stdin)",
		Long: "Load rules from a YAML document mapping label names or ids to sender lists.\n" +
			"The document replaces the rule table unless --merge is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			entries, err := rules.Decode(r)
			if err != nil {
				return err
			}
			dir, err := a.directory(cmd.Context())
			if err != nil {
				return err
			}
			table, err := rules.Resolve(entries, dir)
			if err != nil {
				return err
			}
			st, err := a.ruleStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !merge {
				if err := st.WriteRuleTable(cmd.Context(), table); err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d rule(s) for %d label(s)\n", table.RuleCount(), len(table))
				return nil
			}

			added, skipped := 0, 0
			for _, e := range table {
				for _, rule := range e.Rules {
					err := st.AddRule(cmd.Context(), e.LabelID, rule)
					switch {
					case errors.Is(err, store.ErrDuplicateRule):
						skipped++
					case err != nil:
						return err
					default:
						added++
					}
				}
			}
			fmt.Fprintf(out, "Added %d rule(s), %d already present\n", added, skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "Append to the existing rules instead of replacing them")
	return cmd
}

func newRulesExportCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the rule table as a YAML document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.ruleStore()
			if err != nil {
				return err
			}
			table, err := st.ReadRuleTable(cmd.Context())
			if err != nil {
				return err
			}
			var labels rules.LabelResolver
			if !offline {
				dir, err := a.directory(cmd.Context())
				if err != nil {
					return err
				}
				labels = dir
			}

			if len(args) == 0 || args[0] == "-" {
				return rules.Encode(cmd.OutOrStdout(), table, labels)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := rules.Encode(f, table, labels); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Write label ids without contacting Gmail")
	return cmd
}
