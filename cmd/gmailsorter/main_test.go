package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmailsorter/internal/model"
	"gmailsorter/internal/rules"
	"gmailsorter/internal/store"
)

// runApp executes one command line. Only offline paths are exercised;
// anything reaching Gmail would need credentials.
func runApp(t *testing.T, args ...string) (*app, string, error) {
	t.Helper()
	a := newApp()
	var out bytes.Buffer
	a.root.SetOut(&out)
	a.root.SetErr(&out)
	a.root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := a.execute(context.Background())
	return a, out.String(), err
}

// run executes one command against a throwaway config dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GMAIL_SORTER_CONFIG_DIR", dir)
	_, out, err := runApp(t, args...)
	return out, err
}

func TestRulesOfflineRoundTrip(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "rules", "list", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "No sender rules configured.")

	_, err = run(t, dir, "rules", "add", "--id", "Label_1", "Shop <Orders@Shop.com>")
	require.NoError(t, err)
	_, err = run(t, dir, "rules", "add", "--id", "Label_2", "news@example.com", "--name", "News")
	require.NoError(t, err)

	_, err = run(t, dir, "rules", "add", "--id", "Label_1", "orders@shop.com")
	assert.ErrorIs(t, err, store.ErrDuplicateRule)

	out, err = run(t, dir, "rules", "list", "--offline")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Label_1"), strings.Index(out, "Label_2"))
	assert.Contains(t, out, "orders@shop.com")
	assert.Contains(t, out, "Shop")

	exported := filepath.Join(dir, "rules.yaml")
	_, err = run(t, dir, "rules", "export", "--offline", exported)
	require.NoError(t, err)
	f, err := os.Open(exported)
	require.NoError(t, err)
	entries, err := rules.Decode(f)
	f.Close()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Label_1", entries[0].Label)
	assert.Equal(t, []model.SenderRule{{SenderEmail: "orders@shop.com", SenderName: "Shop"}}, entries[0].Rules)
	assert.Equal(t, "Label_2", entries[1].Label)
	assert.Equal(t, []model.SenderRule{{SenderEmail: "news@example.com", SenderName: "News"}}, entries[1].Rules)

	// Label_1 is already in the table, so no Gmail lookup is needed.
	_, err = run(t, dir, "rules", "remove", "Label_1", "ORDERS@shop.com")
	require.NoError(t, err)
	_, err = run(t, dir, "rules", "remove", "--id", "Label_1", "orders@shop.com")
	assert.ErrorIs(t, err, store.ErrRuleNotFound)

	out, err = run(t, dir, "rules", "list", "--offline")
	require.NoError(t, err)
	assert.NotContains(t, out, "Label_1")
}

func TestRulesAddRejectsBadSender(t *testing.T) {
	_, err := run(t, t.TempDir(), "rules", "add", "--id", "Label_1", "not-an-address")
	assert.ErrorIs(t, err, store.ErrInvalidRule)
}

func TestHistoryEmpty(t *testing.T) {
	out, err := run(t, t.TempDir(), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")

	_, err = run(t, t.TempDir(), "history", "--limit", "0")
	assert.Error(t, err)
}

func TestConfigDirFlagLocatesConfigFile(t *testing.T) {
	t.Setenv("GMAIL_SORTER_CONFIG_DIR", t.TempDir())
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.db")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("db_path: "+custom+"\n"), 0o600))

	_, out, err := runApp(t, "--config-dir", dir, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
	assert.FileExists(t, custom)
	assert.NoFileExists(t, filepath.Join(dir, "gmailsorter.db"))
}

func TestFailedCommandStillClosesStore(t *testing.T) {
	t.Setenv("GMAIL_SORTER_CONFIG_DIR", t.TempDir())

	a, _, err := runApp(t, "rules", "remove", "--id", "Label_1", "nobody@example.com")
	require.ErrorIs(t, err, store.ErrRuleNotFound)

	var st *store.SQLiteStore
	require.NoError(t, a.container.Invoke(func(s *store.SQLiteStore) { st = s }))
	err = st.AddRule(context.Background(), "Label_1", model.SenderRule{SenderEmail: "a@b.com"})
	assert.Error(t, err, "store should be closed after a failing command")
}
