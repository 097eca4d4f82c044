package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gmailsorter/internal/gmail"
	"gmailsorter/internal/model"
	"gmailsorter/internal/sorter"
	"gmailsorter/internal/util"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type viewState int

const (
	viewLoading viewState = iota
	viewLabels            // labels with rule counts
	viewRules             // sender rules of one label
	viewAddRule           // sender address input
	viewRunning           // cleanup in progress
	viewReport            // result of the last cleanup
)

// RuleStore is the rule table as the browser edits it.
type RuleStore interface {
	ReadRuleTable(ctx context.Context) (model.RuleTable, error)
	AddRule(ctx context.Context, labelID string, rule model.SenderRule) error
	RemoveRule(ctx context.Context, labelID, senderEmail string) error
}

// Cleaner runs one cleanup pass.
type Cleaner interface {
	Run(ctx context.Context) model.Report
}

type AppModel struct {
	// Core state
	labels  sorter.LabelLister
	rules   RuleStore
	cleaner Cleaner
	Err     error
	status  string

	// View state machine
	view          viewState
	selectedLabel *labelItem
	lastReport    *model.Report

	// Sub-models
	labelsList     list.Model
	rulesList      list.Model
	reportViewport viewport.Model
	textInput      textinput.Model

	// Layout
	width, height int
}

func NewAppModel(labels sorter.LabelLister, rules RuleStore, cleaner Cleaner) AppModel {
	ti := textinput.New()
	ti.Placeholder = "sender@example.com"

	ll := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	// esc navigates back, never quits
	ll.KeyMap.Quit.SetKeys("q")
	rl := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	rl.KeyMap.Quit.SetKeys("q")

	return AppModel{
		labels:         labels,
		rules:          rules,
		cleaner:        cleaner,
		status:         "Loading labels and rules...",
		view:           viewLoading,
		labelsList:     ll,
		rulesList:      rl,
		reportViewport: viewport.New(0, 0),
		textInput:      ti,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listH := msg.Height - 4 // room for footer
		m.labelsList.SetSize(msg.Width, listH)
		m.rulesList.SetSize(msg.Width, listH)
		m.reportViewport.Width = msg.Width
		m.reportViewport.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case loadedMsg:
		if msg.err != nil {
			m.Err = msg.err
			m.status = "Load failed!"
			return m, tea.Quit
		}
		m.applyLoaded(msg)
		return m, nil

	case cleanupDoneMsg:
		rep := msg.report
		m.lastReport = &rep
		m.reportViewport.SetContent(renderReport(rep))
		m.reportViewport.GotoTop()
		m.view = viewReport
		m.status = ""
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s complete", msg.action)
		}
		return m, tea.Batch(m.loadCmd(), clearStatusAfter(2*time.Second))

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewLabels:
		m.labelsList, cmd = m.labelsList.Update(msg)
	case viewRules:
		m.rulesList, cmd = m.rulesList.Update(msg)
	case viewAddRule:
		m.textInput, cmd = m.textInput.Update(msg)
	case viewReport:
		m.reportViewport, cmd = m.reportViewport.Update(msg)
	}
	return m, cmd
}

// applyLoaded refreshes both lists, keeping the open label selected.
func (m *AppModel) applyLoaded(msg loadedMsg) {
	items := labelsToItems(msg.labels, msg.table)
	m.labelsList.SetItems(items)
	m.labelsList.Title = fmt.Sprintf("Labels (%d rules)", msg.table.RuleCount())

	if m.selectedLabel != nil {
		found := false
		for _, it := range items {
			li := it.(labelItem)
			if li.LabelID == m.selectedLabel.LabelID {
				m.selectedLabel = &li
				found = true
				break
			}
		}
		if !found {
			m.selectedLabel.Rules = nil
		}
		m.rulesList.SetItems(rulesToItems(m.selectedLabel.Rules))
		m.rulesList.Title = rulesTitle(*m.selectedLabel)
	}
	if m.view == viewLoading {
		m.view = viewLabels
		m.status = ""
	}
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	}

	switch m.view {
	case viewLabels:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.labelsList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.labelsList, cmd = m.labelsList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "enter":
			return m.enterLabel()
		case "c":
			m.view = viewRunning
			m.status = "Cleaning up inbox..."
			return m, m.cleanupCmd()
		case "l":
			if m.lastReport != nil {
				m.view = viewReport
			}
			return m, nil
		case "r":
			m.status = "Reloading..."
			return m, m.loadCmd()
		case "o":
			if li, ok := m.labelsList.SelectedItem().(labelItem); ok && !li.Stale {
				_ = gmail.OpenBrowser(gmail.LabelURL(li.Name))
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.labelsList, cmd = m.labelsList.Update(msg)
		return m, cmd

	case viewRules:
		if m.rulesList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.rulesList, cmd = m.rulesList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewLabels
			m.selectedLabel = nil
			return m, nil
		case "a":
			if m.selectedLabel == nil || m.selectedLabel.Stale {
				return m, nil
			}
			m.textInput.Reset()
			m.textInput.Focus()
			m.view = viewAddRule
			return m, textinput.Blink
		case "d":
			return m.removeSelectedRule()
		}
		var cmd tea.Cmd
		m.rulesList, cmd = m.rulesList.Update(msg)
		return m, cmd

	case viewAddRule:
		switch key {
		case "esc":
			m.textInput.Blur()
			m.view = viewRules
			return m, nil
		case "enter":
			return m.submitRule()
		}
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd

	case viewReport:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewLabels
			return m, nil
		}
		var cmd tea.Cmd
		m.reportViewport, cmd = m.reportViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) enterLabel() (tea.Model, tea.Cmd) {
	li, ok := m.labelsList.SelectedItem().(labelItem)
	if !ok {
		return m, nil
	}
	m.selectedLabel = &li
	m.rulesList.SetItems(rulesToItems(li.Rules))
	m.rulesList.Title = rulesTitle(li)
	m.view = viewRules
	return m, nil
}

func rulesTitle(li labelItem) string {
	return fmt.Sprintf("%s (%d rules)", li.Name, len(li.Rules))
}

func (m *AppModel) removeSelectedRule() (tea.Model, tea.Cmd) {
	ri, ok := m.rulesList.SelectedItem().(ruleItem)
	if !ok || m.selectedLabel == nil {
		return m, nil
	}
	labelID := m.selectedLabel.LabelID

	// Optimistically remove from list
	m.rulesList.RemoveItem(m.rulesList.Index())
	m.status = "Removing rule..."

	return m, func() tea.Msg {
		err := m.rules.RemoveRule(context.Background(), labelID, ri.SenderEmail)
		return actionResultMsg{action: "Remove rule", err: err}
	}
}

func (m *AppModel) submitRule() (tea.Model, tea.Cmd) {
	val := strings.TrimSpace(m.textInput.Value())
	name, email := util.ParseFrom(val)
	if !util.ValidAddress(email) {
		m.status = fmt.Sprintf("%q is not an email address", val)
		return m, clearStatusAfter(2 * time.Second)
	}
	m.textInput.Blur()
	m.view = viewRules
	m.status = "Adding rule..."

	labelID := m.selectedLabel.LabelID
	rule := model.SenderRule{SenderEmail: email, SenderName: name}
	return m, func() tea.Msg {
		err := m.rules.AddRule(context.Background(), labelID, rule)
		return actionResultMsg{action: "Add rule", err: err}
	}
}

// Commands

func (m *AppModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		labels, err := m.labels.ListLabels(ctx)
		if err != nil {
			return loadedMsg{err: fmt.Errorf("list labels: %w", err)}
		}
		table, err := m.rules.ReadRuleTable(ctx)
		if err != nil {
			return loadedMsg{err: fmt.Errorf("read rules: %w", err)}
		}
		return loadedMsg{labels: labels, table: table}
	}
}

func (m *AppModel) cleanupCmd() tea.Cmd {
	return func() tea.Msg {
		return cleanupDoneMsg{report: m.cleaner.Run(context.Background())}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	// Error state
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}

	// Loading or running
	if m.view == viewLoading || m.view == viewRunning {
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	}

	var b strings.Builder

	switch m.view {
	case viewLabels:
		b.WriteString(m.labelsList.View())
		b.WriteString("\n")
		b.WriteString(labelsFooter())
	case viewRules:
		b.WriteString(m.rulesList.View())
		b.WriteString("\n")
		b.WriteString(rulesFooter())
	case viewAddRule:
		if m.selectedLabel != nil {
			b.WriteString(headerStyle.Render("New rule for " + m.selectedLabel.Name))
			b.WriteString("\n")
		}
		b.WriteString(m.textInput.View())
		b.WriteString("\n")
		b.WriteString(footerStyle.Render("enter: save  esc: cancel"))
	case viewReport:
		b.WriteString(m.reportViewport.View())
		b.WriteString("\n")
		b.WriteString(reportFooter())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}
