package tui

import "gmailsorter/internal/model"

// Async message types for Bubble Tea commands.

type loadedMsg struct {
	labels []model.Label
	table  model.RuleTable
	err    error
}

type cleanupDoneMsg struct {
	report model.Report
}

type actionResultMsg struct {
	action string // "remove rule"
	err    error
}

type statusMsg string
