package sorter

import (
	"context"

	"go.uber.org/zap"

	"gmailsorter/internal/model"
)

// Driver applies the matcher to a batch of messages and reclassifies matches.
type Driver struct {
	mailbox Reclassifier
	matcher *Matcher
	logger  *zap.Logger
	dryRun  bool
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDryRun makes the driver report matches without calling Reclassify.
func WithDryRun(dryRun bool) DriverOption {
	return func(d *Driver) { d.dryRun = dryRun }
}

// WithInboxLabel names the label messages are moved out of. Rules that
// target it never match. Defaults to INBOX.
func WithInboxLabel(labelID string) DriverOption {
	return func(d *Driver) {
		if labelID != "" {
			d.matcher.inbox = labelID
		}
	}
}

// NewDriver creates a driver that reclassifies through mailbox.
func NewDriver(mailbox Reclassifier, logger *zap.Logger, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		mailbox: mailbox,
		matcher: NewMatcher(logger),
		logger:  logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run processes messages in batch order and returns one record per message
// that was moved. The result is never nil.
func (d *Driver) Run(ctx context.Context, messages []model.Message, table model.RuleTable, dir *Directory) []model.ProcessedRecord {
	return d.Apply(ctx, messages, table, dir).Records
}

// Apply is Run with counters. Each matched message gets exactly one
// Reclassify call; a failed call is logged and the message is left out of
// the records, never retried in the same pass. Apply stops before the next
// message once ctx is done and reports ctx.Err().
func (d *Driver) Apply(ctx context.Context, messages []model.Message, table model.RuleTable, dir *Directory) model.Report {
	rep := model.Report{DryRun: d.dryRun, Records: []model.ProcessedRecord{}}
	if len(messages) == 0 {
		d.logger.Debug("No messages to process")
		return rep
	}
	if table.IsEmpty() {
		d.logger.Debug("No sender rules configured")
		return rep
	}

	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("Run interrupted", zap.Error(err), zap.Int("processed", len(rep.Records)))
			rep.Err = err
			return rep
		}
		if _, dup := seen[msg.ID]; dup {
			d.logger.Warn("Skipping duplicate message in batch", zap.String("message_id", msg.ID))
			continue
		}
		seen[msg.ID] = struct{}{}
		rep.Scanned++

		labelID, ok := d.matcher.MatchCategory(msg, table, dir)
		if !ok {
			continue
		}
		rep.Matched++
		labelName, _ := dir.Name(labelID)
		subject := msg.Subject
		if subject == "" {
			subject = model.NoSubject
		}

		log := d.logger.With(
			zap.String("message_id", msg.ID),
			zap.String("subject", subject),
			zap.String("sender", msg.SenderEmail),
			zap.String("label", labelName),
			zap.String("label_id", labelID))

		if d.dryRun {
			log.Info("Would apply label (dry run)")
		} else {
			log.Debug("Applying label")
			if err := d.mailbox.Reclassify(ctx, msg.ID, labelID); err != nil {
				rep.Failed++
				log.Error("Failed to reclassify message", zap.Error(err))
				continue
			}
			log.Info("Labeled message and removed from inbox")
		}
		rep.Records = append(rep.Records, model.ProcessedRecord{
			MessageID:    msg.ID,
			Subject:      subject,
			LabelApplied: labelName,
		})
	}
	return rep
}
