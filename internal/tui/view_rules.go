package tui

import (
	"github.com/charmbracelet/bubbles/list"

	"gmailsorter/internal/model"
)

// ruleItem wraps SenderRule for the list display.
type ruleItem struct {
	model.SenderRule
}

func (r ruleItem) FilterValue() string { return r.SenderEmail + " " + r.SenderName }
func (r ruleItem) Title() string       { return r.SenderEmail }
func (r ruleItem) Description() string { return r.SenderName }

func rulesFooter() string {
	return footerStyle.Render("a: add rule  d: delete rule  esc: back  q: quit")
}

func rulesToItems(rules []model.SenderRule) []list.Item {
	items := make([]list.Item, len(rules))
	for i, r := range rules {
		items[i] = ruleItem{r}
	}
	return items
}
