package sorter

import (
	"strings"

	"go.uber.org/zap"

	"gmailsorter/internal/model"
	"gmailsorter/internal/util"
)

// Matcher picks the label a message should be moved to.
//
// Tie-break: the first table entry (in stored order) that owns a matching
// rule wins, and within it the first matching rule. Entries whose label id
// is blank, unknown to the directory or the inbox itself are skipped whole;
// rules with a malformed sender are skipped individually.
type Matcher struct {
	logger *zap.Logger
	inbox  string
}

// NewMatcher returns a Matcher that logs skipped entries at debug level.
func NewMatcher(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger, inbox: model.InboxLabelID}
}

// MatchCategory returns the id of the label msg should be moved to, or
// ("", false) when no rule applies. It reads table and dir and never
// modifies them.
func (m *Matcher) MatchCategory(msg model.Message, table model.RuleTable, dir *Directory) (string, bool) {
	if strings.TrimSpace(msg.SenderEmail) == "" {
		return "", false
	}
	sender := util.AddressKey(msg.SenderEmail)

	for _, entry := range table {
		if strings.TrimSpace(entry.LabelID) == "" {
			m.logger.Debug("Skipping rules with empty label id", zap.Int("rules", len(entry.Rules)))
			continue
		}
		if entry.LabelID == m.inbox {
			// Moving into the inbox while removing the inbox label is no move.
			m.logger.Debug("Skipping rules targeting the inbox", zap.String("label_id", entry.LabelID))
			continue
		}
		if _, ok := dir.Name(entry.LabelID); !ok {
			m.logger.Debug("Skipping stale label", zap.String("label_id", entry.LabelID))
			continue
		}
		for _, rule := range entry.Rules {
			if !util.ValidAddress(rule.SenderEmail) {
				m.logger.Debug("Skipping malformed rule",
					zap.String("label_id", entry.LabelID),
					zap.String("sender", rule.SenderEmail))
				continue
			}
			if util.AddressKey(rule.SenderEmail) == sender {
				return entry.LabelID, true
			}
		}
	}
	return "", false
}
