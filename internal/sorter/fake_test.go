package sorter

import (
	"context"
	"errors"

	"gmailsorter/internal/model"
)

// fakeMailbox records Reclassify calls and fails on demand.
type fakeMailbox struct {
	labels     []model.Label
	labelsErr  error
	messages   []model.Message
	listErr    error
	getErr     map[string]error
	failOn     map[string]error
	calls      []reclassifyCall
	panicOnGet bool
}

type reclassifyCall struct {
	messageID string
	labelID   string
}

func (f *fakeMailbox) ListLabels(context.Context) ([]model.Label, error) {
	return f.labels, f.labelsErr
}

func (f *fakeMailbox) ListInboxMessageIDs(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]string, len(f.messages))
	for i, m := range f.messages {
		ids[i] = m.ID
	}
	return ids, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (model.Message, error) {
	if f.panicOnGet {
		panic("boom")
	}
	if err := f.getErr[id]; err != nil {
		return model.Message{}, err
	}
	for _, m := range f.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Message{}, errors.New("not found")
}

func (f *fakeMailbox) Reclassify(_ context.Context, messageID, labelID string) error {
	f.calls = append(f.calls, reclassifyCall{messageID: messageID, labelID: labelID})
	return f.failOn[messageID]
}

type fakeRules struct {
	table model.RuleTable
	err   error
}

func (f fakeRules) ReadRuleTable(context.Context) (model.RuleTable, error) {
	return f.table, f.err
}

type fakeRecorder struct {
	reports []model.Report
}

func (f *fakeRecorder) RecordRun(_ context.Context, r model.Report) error {
	f.reports = append(f.reports, r)
	return nil
}
