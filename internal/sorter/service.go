package sorter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gmailsorter/internal/model"
)

// ErrStartup marks failures that keep a run from starting: authentication,
// label listing or inbox listing. No message is modified when it is returned.
var ErrStartup = errors.New("cleanup could not start")

// Service runs inbox cleanups.
type Service struct {
	mailbox  Mailbox
	rules    RuleSource
	recorder RunRecorder
	logger   *zap.Logger
	dryRun   bool
	inbox    string
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder persists every finished run through r.
func WithRecorder(r RunRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithServiceDryRun reports matches without modifying any message.
func WithServiceDryRun(dryRun bool) Option {
	return func(s *Service) { s.dryRun = dryRun }
}

// WithServiceInboxLabel names the label cleanups move messages out of.
func WithServiceInboxLabel(labelID string) Option {
	return func(s *Service) { s.inbox = labelID }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a cleanup service.
func NewService(mailbox Mailbox, rules RuleSource, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		mailbox: mailbox,
		rules:   rules,
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunCleanup runs one cleanup and returns the moved messages. On failure the
// list is empty and the error describes why; it never panics.
func (s *Service) RunCleanup(ctx context.Context) ([]model.ProcessedRecord, error) {
	rep := s.Run(ctx)
	return rep.Records, rep.Err
}

// Run performs one cleanup: load labels, load rules, fetch the inbox, then
// match and reclassify message by message.
func (s *Service) Run(ctx context.Context) (rep model.Report) {
	rep = model.Report{
		StartedAt: s.now(),
		DryRun:    s.dryRun,
		Records:   []model.ProcessedRecord{},
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cleanup panicked", zap.Any("panic", r), zap.Stack("stack"))
			rep.Records = []model.ProcessedRecord{}
			rep.Err = fmt.Errorf("cleanup aborted: %v", r)
		}
		rep.FinishedAt = s.now()
		s.record(rep)
	}()

	s.logger.Info("Starting inbox cleanup", zap.Bool("dry_run", s.dryRun))

	dir, err := LoadDirectory(ctx, s.mailbox, s.logger)
	if err != nil {
		rep.Err = fmt.Errorf("%w: %w", ErrStartup, err)
		s.logger.Error("Cleanup aborted", zap.Error(rep.Err))
		return rep
	}
	if dir.Len() == 0 {
		s.logger.Info("No labels found, nothing to do")
		return rep
	}

	table := s.loadRules(ctx)
	if table.IsEmpty() {
		s.logger.Info("No sender rules configured, nothing to do")
		return rep
	}
	for _, id := range dir.StaleLabelIDs(table) {
		s.logger.Warn("Label id in rules not found in mailbox, its rules are ignored",
			zap.String("label_id", id),
			zap.Int("rules", len(table.Rules(id))))
	}

	messages, err := s.fetchBatch(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("%w: %w", ErrStartup, err)
		s.logger.Error("Cleanup aborted", zap.Error(rep.Err))
		return rep
	}
	if len(messages) == 0 {
		s.logger.Info("No messages to process")
		return rep
	}
	s.logger.Info("Processing messages", zap.Int("count", len(messages)))

	applied := NewDriver(s.mailbox, s.logger, WithDryRun(s.dryRun), WithInboxLabel(s.inbox)).Apply(ctx, messages, table, dir)
	rep.Scanned = applied.Scanned
	rep.Matched = applied.Matched
	rep.Failed = applied.Failed
	rep.Records = applied.Records
	rep.Err = applied.Err

	s.logger.Info("Inbox cleanup finished",
		zap.Int("scanned", rep.Scanned),
		zap.Int("matched", rep.Matched),
		zap.Int("moved", len(rep.Records)),
		zap.Int("failed", rep.Failed))
	return rep
}

// loadRules treats a read failure as an empty table.
func (s *Service) loadRules(ctx context.Context) model.RuleTable {
	table, err := s.rules.ReadRuleTable(ctx)
	if err != nil {
		s.logger.Warn("Could not read sender rules, using none", zap.Error(err))
		return nil
	}
	return table.Clone()
}

// fetchBatch lists the inbox and loads each message's sender and subject.
// Only the listing can fail the run; a message that cannot be loaded or
// has no usable sender is dropped.
func (s *Service) fetchBatch(ctx context.Context) ([]model.Message, error) {
	ids, err := s.mailbox.ListInboxMessageIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	s.logger.Debug("Listed inbox", zap.Int("count", len(ids)))

	messages := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := s.mailbox.GetMessage(ctx, id)
		if err != nil {
			s.logger.Warn("Could not load message, skipping", zap.String("message_id", id), zap.Error(err))
			continue
		}
		if msg.SenderEmail == "" {
			s.logger.Warn("Message has no parseable sender, skipping", zap.String("message_id", id))
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Service) record(rep model.Report) {
	if s.recorder == nil {
		return
	}
	// A cancelled run context must not prevent the history write.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordRun(ctx, rep); err != nil {
		s.logger.Warn("Could not record run", zap.Error(err))
	}
}
