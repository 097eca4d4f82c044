package rules

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmailsorter/internal/model"
)

type labelMap map[string]string // id -> name

func (m labelMap) Name(id string) (string, bool) {
	n, ok := m[id]
	return n, ok
}

func (m labelMap) ID(name string) (string, bool) {
	for id, n := range m {
		if n == name {
			return id, true
		}
	}
	return "", false
}

var testLabels = labelMap{"Label_1": "Receipts", "Label_2": "Newsletters", "Label_3": "Work/Clients"}

func TestDecode_KeepsOrder(t *testing.T) {
	doc := `
Work/Clients:
  - boss@corp.com
Receipts:
  - email: Orders@Shop.com
    name: " Shop "
  - billing@isp.net
Label_2:
`
	entries, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Work/Clients", entries[0].Label)
	assert.Equal(t, "Receipts", entries[1].Label)
	assert.Equal(t, []model.SenderRule{
		{SenderEmail: "orders@shop.com", SenderName: "Shop"},
		{SenderEmail: "billing@isp.net"},
	}, entries[1].Rules)
	assert.Empty(t, entries[2].Rules)

	table, err := Resolve(entries, testLabels)
	require.NoError(t, err)
	assert.Equal(t, []string{"Label_3", "Label_1"}, table.LabelIDs())
}

func TestDecode_Errors(t *testing.T) {
	tests := map[string]string{
		"not a mapping":    "- a@x.com\n",
		"duplicate sender": "Receipts:\n  - a@x.com\n  - A@X.com\n",
		"duplicate label":  "Receipts:\n  - a@x.com\nReceipts:\n  - b@x.com\n",
		"invalid sender":   "Receipts:\n  - not-an-address\n",
		"senders not list": "Receipts: a@x.com\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	entries, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_UnknownLabel(t *testing.T) {
	entries := []Entry{{Label: "Missing", Line: 3, Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}}}
	_, err := Resolve(entries, testLabels)
	assert.True(t, errors.Is(err, ErrUnknownLabel))
}

func TestResolve_SameLabelTwice(t *testing.T) {
	entries := []Entry{
		{Label: "Receipts", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}},
		{Label: "Label_1", Rules: []model.SenderRule{{SenderEmail: "b@x.com"}}},
	}
	_, err := Resolve(entries, testLabels)
	assert.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	table := model.RuleTable{
		{LabelID: "Label_2", Rules: []model.SenderRule{{SenderEmail: "news@x.com", SenderName: "News"}}},
		{LabelID: "stale", Rules: []model.SenderRule{{SenderEmail: "true@x.com"}}},
		{LabelID: "Label_1", Rules: []model.SenderRule{{SenderEmail: "a@x.com"}}},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, table, testLabels))
	assert.Contains(t, buf.String(), "Newsletters:")
	assert.Contains(t, buf.String(), "stale:")

	entries, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Newsletters", entries[0].Label)
	assert.Equal(t, table[0].Rules, entries[0].Rules)
	assert.Equal(t, "stale", entries[1].Label)
	assert.Equal(t, "Receipts", entries[2].Label)
}
