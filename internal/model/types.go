package model

import "time"

// Label types as reported by Gmail.
const (
	LabelTypeSystem = "system"
	LabelTypeUser   = "user"
)

// InboxLabelID is the system label that defines the default view.
const InboxLabelID = "INBOX"

// NoSubject is reported for messages without a Subject header.
const NoSubject = "No Subject"

// Label is a Gmail label (category). ID is opaque and stable; Name is the
// display name and may change.
type Label struct {
	ID   string
	Name string
	Type string
}

// SenderRule binds one sender address to the label that owns it.
type SenderRule struct {
	SenderEmail string `yaml:"email"`
	SenderName  string `yaml:"name,omitempty"` // informational only
}

// LabelRules is one entry of a RuleTable: a label id and its ordered rules.
type LabelRules struct {
	LabelID string
	Rules   []SenderRule
}

// RuleTable maps label ids to sender rules. Entry order is insertion order
// and is significant: the first matching entry wins.
type RuleTable []LabelRules

// IsEmpty reports whether the table holds no rules at all.
func (t RuleTable) IsEmpty() bool { return t.RuleCount() == 0 }

// RuleCount returns the total number of rules across all labels.
func (t RuleTable) RuleCount() int {
	n := 0
	for _, e := range t {
		n += len(e.Rules)
	}
	return n
}

// Rules returns the rules stored for labelID, or nil.
func (t RuleTable) Rules(labelID string) []SenderRule {
	for _, e := range t {
		if e.LabelID == labelID {
			return e.Rules
		}
	}
	return nil
}

// LabelIDs returns the label ids in table order.
func (t RuleTable) LabelIDs() []string {
	out := make([]string, len(t))
	for i, e := range t {
		out[i] = e.LabelID
	}
	return out
}

// Clone returns a deep copy so callers can hand out read-only snapshots.
func (t RuleTable) Clone() RuleTable {
	if t == nil {
		return nil
	}
	out := make(RuleTable, len(t))
	for i, e := range t {
		rules := make([]SenderRule, len(e.Rules))
		copy(rules, e.Rules)
		out[i] = LabelRules{LabelID: e.LabelID, Rules: rules}
	}
	return out
}

// Message is one inbox message as seen by the sorter.
type Message struct {
	ID          string
	Subject     string
	SenderEmail string // normalized: lowercase, trimmed
	SenderName  string
}

// ProcessedRecord describes one message that was moved out of the inbox.
type ProcessedRecord struct {
	MessageID    string
	Subject      string
	LabelApplied string // label name, not id
}

// Report summarizes a cleanup run.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int // messages evaluated by the matcher
	Matched    int // messages with a matching rule
	Failed     int // matched messages whose reclassification failed
	DryRun     bool
	Records    []ProcessedRecord
	Err        error
}

// RunSummary is a persisted Report as loaded back from run history.
type RunSummary struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Matched    int
	Failed     int
	DryRun     bool
	Error      string
	Records    []ProcessedRecord
}
