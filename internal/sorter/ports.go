// Package sorter decides which inbox messages to move under which label and
// applies those decisions through the mail API.
//
// A run is strictly sequential: the matcher is evaluated for one message, its
// reclassification (if any) completes, and only then does the next message
// start. Nothing carries over between runs except the rule table, which the
// sorter only reads, and the optional run history.
package sorter

import (
	"context"

	"gmailsorter/internal/model"
)

// LabelLister lists the labels of the mailbox.
type LabelLister interface {
	ListLabels(ctx context.Context) ([]model.Label, error)
}

// Reclassifier moves a message out of the inbox and under a label.
type Reclassifier interface {
	Reclassify(ctx context.Context, messageID, labelID string) error
}

// Mailbox is the remote mail API as seen by a cleanup run.
type Mailbox interface {
	LabelLister
	Reclassifier
	ListInboxMessageIDs(ctx context.Context) ([]string, error)
	GetMessage(ctx context.Context, id string) (model.Message, error)
}

// RuleSource reads the persisted rule table.
type RuleSource interface {
	ReadRuleTable(ctx context.Context) (model.RuleTable, error)
}

// RunRecorder persists finished run reports.
type RunRecorder interface {
	RecordRun(ctx context.Context, r model.Report) error
}
