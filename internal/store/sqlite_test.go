package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gmailsorter/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadRuleTable_Empty(t *testing.T) {
	s := testStore(t)
	table, err := s.ReadRuleTable(context.Background())
	if err != nil {
		t.Fatalf("ReadRuleTable: %v", err)
	}
	if !table.IsEmpty() {
		t.Fatalf("expected empty table, got %v", table)
	}
}

func TestAddRule_PreservesInsertionOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	adds := []struct {
		label string
		email string
	}{
		{"Label_9", "z@x.com"},
		{"Label_1", "a@x.com"},
		{"Label_9", "b@x.com"},
	}
	for _, a := range adds {
		if err := s.AddRule(ctx, a.label, model.SenderRule{SenderEmail: a.email}); err != nil {
			t.Fatalf("AddRule(%s, %s): %v", a.label, a.email, err)
		}
	}

	table, err := s.ReadRuleTable(ctx)
	if err != nil {
		t.Fatalf("ReadRuleTable: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(table))
	}
	if table[0].LabelID != "Label_9" || table[1].LabelID != "Label_1" {
		t.Fatalf("label order = %v", table.LabelIDs())
	}
	if len(table[0].Rules) != 2 || table[0].Rules[0].SenderEmail != "z@x.com" || table[0].Rules[1].SenderEmail != "b@x.com" {
		t.Fatalf("rule order = %v", table[0].Rules)
	}
}

func TestAddRule_RejectsDuplicateCaseInsensitive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddRule(ctx, "Label_1", model.SenderRule{SenderEmail: "a@x.com", SenderName: "A"}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	err := s.AddRule(ctx, "Label_1", model.SenderRule{SenderEmail: " A@X.COM "})
	if !errors.Is(err, ErrDuplicateRule) {
		t.Fatalf("expected ErrDuplicateRule, got %v", err)
	}
	// Same sender under another label is allowed.
	if err := s.AddRule(ctx, "Label_2", model.SenderRule{SenderEmail: "a@x.com"}); err != nil {
		t.Fatalf("AddRule other label: %v", err)
	}
}

func TestAddRule_RejectsInvalid(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddRule(ctx, "", model.SenderRule{SenderEmail: "a@x.com"}); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("empty label: expected ErrInvalidRule, got %v", err)
	}
	if err := s.AddRule(ctx, "Label_1", model.SenderRule{SenderEmail: "nobody"}); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("bad sender: expected ErrInvalidRule, got %v", err)
	}
}

func TestRemoveRule_LastRuleDropsLabel(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.AddRule(ctx, "Label_1", model.SenderRule{SenderEmail: "a@x.com"})
	s.AddRule(ctx, "Label_2", model.SenderRule{SenderEmail: "b@x.com"})

	if err := s.RemoveRule(ctx, "Label_1", "A@x.com"); err != nil {
		t.Fatalf("RemoveRule: %v", err)
	}
	if err := s.RemoveRule(ctx, "Label_1", "a@x.com"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}

	// Re-adding moves the label behind Label_2.
	s.AddRule(ctx, "Label_1", model.SenderRule{SenderEmail: "a@x.com"})
	table, _ := s.ReadRuleTable(ctx)
	if got := table.LabelIDs(); len(got) != 2 || got[0] != "Label_2" || got[1] != "Label_1" {
		t.Fatalf("label order = %v", got)
	}
}

func TestWriteRuleTable_Replaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.AddRule(ctx, "Old", model.SenderRule{SenderEmail: "old@x.com"})
	want := model.RuleTable{
		{LabelID: "Label_3", Rules: []model.SenderRule{{SenderEmail: "C@x.com", SenderName: " Cee "}}},
		{LabelID: "Label_1", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}, {SenderEmail: "b@x.com"}}},
	}
	if err := s.WriteRuleTable(ctx, want); err != nil {
		t.Fatalf("WriteRuleTable: %v", err)
	}

	got, err := s.ReadRuleTable(ctx)
	if err != nil {
		t.Fatalf("ReadRuleTable: %v", err)
	}
	if len(got) != 2 || got[0].LabelID != "Label_3" || got[1].LabelID != "Label_1" {
		t.Fatalf("labels = %v", got.LabelIDs())
	}
	if r := got[0].Rules[0]; r.SenderEmail != "c@x.com" || r.SenderName != "Cee" {
		t.Fatalf("rule not normalized: %+v", r)
	}
	if got.RuleCount() != 3 {
		t.Fatalf("expected 3 rules, got %d", got.RuleCount())
	}
}

func TestWriteRuleTable_DuplicateRollsBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.AddRule(ctx, "Keep", model.SenderRule{SenderEmail: "keep@x.com"})
	bad := model.RuleTable{
		{LabelID: "Label_1", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}, {SenderEmail: "A@x.com"}}},
	}
	if err := s.WriteRuleTable(ctx, bad); !errors.Is(err, ErrDuplicateRule) {
		t.Fatalf("expected ErrDuplicateRule, got %v", err)
	}
	table, _ := s.ReadRuleTable(ctx)
	if len(table) != 1 || table[0].LabelID != "Keep" {
		t.Fatalf("table changed after failed write: %v", table)
	}
}

func TestRecordRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	first := model.Report{
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Scanned:    3,
		Matched:    2,
		Failed:     1,
		Records:    []model.ProcessedRecord{{MessageID: "m1", Subject: "Receipt", LabelApplied: "Receipts"}},
	}
	if err := s.RecordRun(ctx, first); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := s.RecordRun(ctx, model.Report{StartedAt: start, FinishedAt: start, DryRun: true}); err != nil {
		t.Fatalf("RecordRun second: %v", err)
	}

	runs, err := s.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].DryRun || len(runs[0].Records) != 0 {
		t.Fatalf("newest run = %+v", runs[0])
	}
	older := runs[1]
	if older.Scanned != 3 || older.Matched != 2 || older.Failed != 1 || !older.StartedAt.Equal(start) {
		t.Fatalf("older run = %+v", older)
	}
	if len(older.Records) != 1 || older.Records[0].LabelApplied != "Receipts" {
		t.Fatalf("older records = %+v", older.Records)
	}
}
