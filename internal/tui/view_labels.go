package tui

import (
	"fmt"

	"gmailsorter/internal/gmail"
	"gmailsorter/internal/model"
	"gmailsorter/internal/sorter"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

// labelItem is one label row: a label and the rules routing to it.
type labelItem struct {
	LabelID string
	Name    string
	Stale   bool // in the rule table but gone from the mailbox
	Rules   []model.SenderRule
}

func (l labelItem) FilterValue() string { return l.Name }
func (l labelItem) Title() string {
	if l.Stale {
		return fmt.Sprintf("! %s (missing label)", l.Name)
	}
	return "  " + l.Name
}
func (l labelItem) Description() string {
	switch len(l.Rules) {
	case 0:
		return "No sender rules configured for this label."
	case 1:
		return "1 rule"
	default:
		return fmt.Sprintf("%d rules", len(l.Rules))
	}
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

func labelsFooter() string {
	return footerStyle.Render("enter: rules  c: clean up inbox  l: last report  o: open in gmail  r: reload  q: quit  !=label no longer exists")
}

// labelsToItems lists rule-table labels first, in table order, then the
// remaining editable labels by name.
func labelsToItems(labels []model.Label, table model.RuleTable) []list.Item {
	dir := sorter.NewDirectory(labels, nil)
	items := make([]list.Item, 0, len(table)+len(labels))
	inTable := make(map[string]bool, len(table))
	for _, e := range table {
		inTable[e.LabelID] = true
		name, ok := dir.Name(e.LabelID)
		if !ok {
			name = e.LabelID
		}
		items = append(items, labelItem{LabelID: e.LabelID, Name: name, Stale: !ok, Rules: e.Rules})
	}
	for _, l := range gmail.EditableLabels(labels) {
		if inTable[l.ID] {
			continue
		}
		items = append(items, labelItem{LabelID: l.ID, Name: l.Name})
	}
	return items
}
