package sorter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gmailsorter/internal/model"
)

func testDirectory() *Directory {
	return NewDirectory([]model.Label{
		{ID: "cat1", Name: "Receipts"},
		{ID: "cat2", Name: "Newsletters"},
		{ID: "cat3", Name: "Work"},
	}, nil)
}

func TestMatchCategory(t *testing.T) {
	dir := testDirectory()
	table := model.RuleTable{
		{LabelID: "cat2", Rules: []model.SenderRule{{SenderEmail: "news@x.com"}, {SenderEmail: "shared@x.com"}}},
		{LabelID: "cat1", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}, {SenderEmail: "shared@x.com"}}},
	}

	tests := []struct {
		name   string
		sender string
		want   string
		wantOK bool
	}{
		{name: "exact", sender: "a@x.com", want: "cat1", wantOK: true},
		{name: "case insensitive", sender: "A@X.com", want: "cat1", wantOK: true},
		{name: "first label in table order wins", sender: "shared@x.com", want: "cat2", wantOK: true},
		{name: "no rule", sender: "b@x.com"},
		{name: "empty sender", sender: ""},
	}
	m := NewMatcher(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.MatchCategory(model.Message{ID: "1", SenderEmail: tt.sender}, table, dir)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchCategory_Pure(t *testing.T) {
	dir := testDirectory()
	table := model.RuleTable{
		{LabelID: "cat1", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}},
	}
	before := table.Clone()
	msg := model.Message{ID: "1", SenderEmail: "a@x.com"}

	m := NewMatcher(nil)
	id1, ok1 := m.MatchCategory(msg, table, dir)
	id2, ok2 := m.MatchCategory(msg, table, dir)

	assert.Equal(t, id1, id2)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, before, table)
}

func TestMatchCategory_StaleLabelNeverMatches(t *testing.T) {
	dir := testDirectory()
	table := model.RuleTable{
		{LabelID: "deleted", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}},
		{LabelID: "cat3", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}},
	}
	got, ok := NewMatcher(nil).MatchCategory(model.Message{SenderEmail: "a@x.com"}, table, dir)
	assert.True(t, ok)
	assert.Equal(t, "cat3", got)

	_, ok = NewMatcher(nil).MatchCategory(model.Message{SenderEmail: "a@x.com"}, table[:1], dir)
	assert.False(t, ok)
}

func TestMatchCategory_MalformedEntriesSkipped(t *testing.T) {
	dir := NewDirectory([]model.Label{{ID: "cat1", Name: "Receipts"}}, nil)
	table := model.RuleTable{
		{LabelID: "  ", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}},
		{LabelID: "cat1", Rules: []model.SenderRule{{SenderEmail: ""}, {SenderEmail: "broken"}, {SenderEmail: "a@x.com"}}},
	}
	got, ok := NewMatcher(nil).MatchCategory(model.Message{SenderEmail: "a@x.com"}, table, dir)
	assert.True(t, ok)
	assert.Equal(t, "cat1", got)
}

func TestMatchCategory_EmptyDirectory(t *testing.T) {
	table := model.RuleTable{{LabelID: "cat1", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}}}
	_, ok := NewMatcher(nil).MatchCategory(model.Message{SenderEmail: "a@x.com"}, table, NewDirectory(nil, nil))
	assert.False(t, ok)
}

func TestMatchCategory_InboxNeverATarget(t *testing.T) {
	dir := NewDirectory([]model.Label{
		{ID: model.InboxLabelID, Name: "INBOX", Type: model.LabelTypeSystem},
		{ID: "cat1", Name: "Receipts"},
	}, nil)
	table := model.RuleTable{
		{LabelID: model.InboxLabelID, Rules: []model.SenderRule{{SenderEmail: "a@x.com"}, {SenderEmail: "only@x.com"}}},
		{LabelID: "cat1", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}},
	}
	m := NewMatcher(nil)

	got, ok := m.MatchCategory(model.Message{ID: "1", SenderEmail: "a@x.com"}, table, dir)
	assert.True(t, ok)
	assert.Equal(t, "cat1", got)

	_, ok = m.MatchCategory(model.Message{ID: "2", SenderEmail: "only@x.com"}, table, dir)
	assert.False(t, ok)
}
