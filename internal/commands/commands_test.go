package commands_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/journalrag/internal/auditlog"
	"github.com/cleared-dev/journalrag/internal/config"
	"github.com/cleared-dev/journalrag/internal/journal"
)

var candidateLine = regexp.MustCompile(`(?m)^(\d{4}): `)

// topCandidate answers with the first account listed in the prompt.
func topCandidate(prompt string) string {
	m := candidateLine.FindStringSubmatch(prompt)
	if m == nil {
		return "none"
	}
	return m[1]
}

func newOracleServer(t *testing.T, answer func(prompt string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.NotEmpty(t, req.Messages) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		content := answer(req.Messages[len(req.Messages)-1].Content)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4", "choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}]}`, content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newProject initializes a hash-embedding project whose oracle is answer.
func newProject(t *testing.T, answer func(prompt string) string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runJournalrag(t, "init", dir, "--name", "Test GmbH", "--embedding-provider", "hash")
	require.NoError(t, err)

	srv := newOracleServer(t, answer)
	path := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.OpenAI.BaseURL = srv.URL + "/v1"
	cfg.Oracle.MaxRetries = 0
	cfg.Logger.Level = "error"
	require.NoError(t, config.Save(path, cfg))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const rentInvoice = `{
  "number": "INV-2025-001",
  "date": "2025-01-15",
  "line_items": [
    {"description": "office rent", "amount": "2500.00"},
    {"description": "utilities payment", "amount": "300.00"}
  ],
  "vat_amount": "532.00",
  "total": "3332.00"
}`

func TestCOAList(t *testing.T) {
	dir := newProject(t, topCandidate)

	out, err := runJournalrag(t, "coa", "list", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "5201")
	assert.Contains(t, out, "Office rent and lease payments")
	assert.Contains(t, out, "9999")
}

func TestCOAKeywords(t *testing.T) {
	dir := newProject(t, topCandidate)

	out, err := runJournalrag(t, "coa", "keywords", "monthly", "rent", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "5201 - Office rent and lease payments")

	out, err = runJournalrag(t, "coa", "keywords", "xyzzy", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no keyword match")
}

func TestCommandsRequireConfig(t *testing.T) {
	_, err := runJournalrag(t, "coa", "list", "--repo", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClassify(t *testing.T) {
	dir := newProject(t, topCandidate)

	out, err := runJournalrag(t, "classify", "office", "rent", "--amount", "2500", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Candidates:")
	assert.Contains(t, out, "Account: ")
	assert.NotContains(t, out, "needs review")

	entries, err := auditlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, auditlog.OutcomeMatched, entries[0].Outcome)
	assert.Equal(t, "office rent", entries[0].Description)
}

func TestClassify_Unmatched(t *testing.T) {
	dir := newProject(t, func(string) string { return "I cannot tell" })

	out, err := runJournalrag(t, "classify", "mystery charge", "--amount", "10", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "9999")
	assert.Contains(t, out, "needs review")
}

func TestClassify_BadAmount(t *testing.T) {
	_, err := runJournalrag(t, "classify", "office rent", "--amount", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing amount")
}

func TestJournal_WritesCSV(t *testing.T) {
	dir := newProject(t, topCandidate)
	invPath := filepath.Join(t.TempDir(), "invoice.json")
	writeFile(t, invPath, rentInvoice)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	out, err := runJournalrag(t, "journal", invPath, "--seq", "7", "--out", outPath, "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Balanced: yes (debit 3332.00, credit 3332.00)")
	assert.Contains(t, out, "VAT compliant: yes")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	postings, err := journal.ReadPostings(f)
	require.NoError(t, err)

	require.Len(t, postings, 4)
	assert.Equal(t, "2025-01-007a", postings[0].EntryID)
	assert.Equal(t, "2025-01-007d", postings[3].EntryID)
	assert.Equal(t, "1501", postings[2].AccountCode)
	assert.Equal(t, "2000", postings[3].AccountCode)
	assert.Empty(t, journal.ValidatePostings(postings, nil))
}

func TestJournal_RejectsBadSeq(t *testing.T) {
	_, err := runJournalrag(t, "journal", "invoice.json", "--seq", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--seq")
}

func TestRun_JournalsImportDir(t *testing.T) {
	dir := newProject(t, topCandidate)
	writeFile(t, filepath.Join(dir, "import", "a-rent.json"), rentInvoice)
	writeFile(t, filepath.Join(dir, "import", "b-software.yaml"), `number: INV-2025-014
date: "2025-01-20"
line_items:
  - description: annual software subscription
    amount: 1200.00
vat_amount: 228.00
total: 1428.00
`)

	out, err := runJournalrag(t, "run", "--repo", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "a-rent.json: 2025-01-001, 4 postings")
	assert.Contains(t, out, "b-software.yaml: 2025-01-002, 14 postings")
	assert.Contains(t, out, "Journaled 2 of 2 invoices.")

	for _, name := range []string{"a-rent.json", "b-software.yaml"} {
		_, err := os.Stat(filepath.Join(dir, "import", "processed", name))
		assert.NoError(t, err, "%s should be processed", name)
	}

	f, err := os.Open(filepath.Join(dir, "2025", "01", "journal.csv"))
	require.NoError(t, err)
	defer f.Close()
	postings, err := journal.ReadPostings(f)
	require.NoError(t, err)
	require.Len(t, postings, 18)
	assert.Equal(t, "1203", postings[4].AccountCode)
	assert.Equal(t, "Prepayment allocation for month 1", postings[4].Description)

	entries, err := auditlog.Read(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	out, err = runJournalrag(t, "run", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No invoices to process.")
}

func TestRun_LeavesInvalidInvoice(t *testing.T) {
	dir := newProject(t, topCandidate)
	writeFile(t, filepath.Join(dir, "import", "short.json"), `{
  "date": "2025-01-15",
  "line_items": [{"description": "office rent", "amount": 2500}, {"description": "utilities payment", "amount": 300}],
  "vat_amount": 285,
  "total": 2785
}`)

	out, err := runJournalrag(t, "run", "--repo", dir)
	require.Error(t, err)
	assert.Contains(t, out, "short.json: not journaled")
	assert.Contains(t, out, "Balanced: no (debit 3085.00, credit 2785.00)")

	_, err = os.Stat(filepath.Join(dir, "import", "short.json"))
	assert.NoError(t, err, "invalid invoice stays in import/")
	_, err = os.Stat(filepath.Join(dir, "2025", "01", "journal.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestEvaluate(t *testing.T) {
	dir := newProject(t, func(string) string { return "none of these" })
	work := t.TempDir()
	invPath := filepath.Join(work, "invoice.yaml")
	writeFile(t, invPath, `line_items:
  - description: consulting workshop
    amount: 1000
vat_amount: 190
total: 1190
`)
	expPath := filepath.Join(work, "expected.yaml")
	writeFile(t, expPath, `- {account_code: "9999", debit: 1000, credit: 0}
- {account_code: "1501", debit: 190, credit: 0}
- {account_code: "2000", debit: 0, credit: 1190}
- {account_code: "2000", debit: 0, credit: 1}
`)

	out, err := runJournalrag(t, "evaluate", invPath, expPath, "--embedding-quality", "--repo", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Balanced: yes")
	assert.Contains(t, out, "VAT compliant: yes")
	assert.Contains(t, out, "Accuracy: 0.75 (3 of 4 expected, 3 generated)")
	assert.Contains(t, out, "missing 2000 0.00/1.00")
	assert.Contains(t, out, "Embedding quality: ")
}
