package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/journalrag/internal/model"
)

func unstamped(debitAcct, amount string) []model.Posting {
	return []model.Posting{
		{AccountCode: debitAcct, Description: "office rent", Debit: dec(amount), Status: model.StatusAutoConfirmed},
		{AccountCode: "2000", Description: PayableDescription, Credit: dec(amount), Status: model.StatusAutoConfirmed},
	}
}

func TestAppend_NewMonth(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, defaultAccounts)

	stamped, err := svc.Append(date(2025, 1, 15), unstamped("5201", "2500.00"))
	require.NoError(t, err)
	require.Len(t, stamped, 2)
	assert.Equal(t, "2025-01-001a", stamped[0].EntryID)
	assert.Equal(t, "2025-01-001b", stamped[1].EntryID)

	path := filepath.Join(dir, "2025", "01", "journal.csv")
	assert.Equal(t, path, svc.MonthPath(2025, 1))
	_, err = os.Stat(path)
	require.NoError(t, err)

	postings, err := svc.ReadMonth(2025, 1)
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.True(t, postings[0].Debit.Equal(dec("2500")))
	assert.True(t, postings[1].Credit.Equal(dec("2500")))
}

func TestAppend_ExistingMonth(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, defaultAccounts)

	_, err := svc.Append(date(2025, 1, 10), unstamped("5201", "10.00"))
	require.NoError(t, err)
	stamped, err := svc.Append(date(2025, 1, 20), unstamped("5202", "20.00"))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-002a", stamped[0].EntryID)

	postings, err := svc.ReadMonth(2025, 1)
	require.NoError(t, err)
	assert.Len(t, postings, 4)

	data, err := os.ReadFile(svc.MonthPath(2025, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header), "header written once")

	seq, err := svc.NextEntrySeq(2025, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, seq)
}

func TestAppend_RejectsUnbalanced(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, defaultAccounts)

	postings := unstamped("5201", "100.00")
	postings[1].Credit = dec("90.00")
	_, err := svc.Append(date(2025, 2, 1), postings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	_, err = os.Stat(svc.MonthPath(2025, 2))
	assert.True(t, os.IsNotExist(err), "nothing written")
}

func TestReadMonth_Missing(t *testing.T) {
	svc := NewService(t.TempDir(), defaultAccounts)
	postings, err := svc.ReadMonth(2030, 12)
	require.NoError(t, err)
	assert.Nil(t, postings)

	seq, err := svc.NextEntrySeq(2030, 12)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)
}
