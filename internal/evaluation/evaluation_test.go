package evaluation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/journalrag/internal/embedding"
	"github.com/cleared-dev/journalrag/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func debit(code, amount string) model.Posting {
	return model.Posting{AccountCode: code, Debit: dec(amount)}
}

func credit(code, amount string) model.Posting {
	return model.Posting{AccountCode: code, Credit: dec(amount)}
}

func exp(p model.Posting) ExpectedPosting {
	return ExpectedPosting{AccountCode: p.AccountCode, Debit: p.Debit, Credit: p.Credit}
}

var generated = []model.Posting{
	debit("5201", "2500.00"),
	debit("5202", "300.00"),
	debit("1501", "285.00"),
	credit("2000", "3085.00"),
}

func TestScorePipelinePerfect(t *testing.T) {
	expected := make([]ExpectedPosting, len(generated))
	for i, p := range generated {
		expected[i] = exp(p)
	}
	expected[0].Debit = dec("2500") // trailing zeros do not matter

	s := ScorePipeline(generated, expected)
	assert.InDelta(t, 1.0, s.Accuracy, 1e-9)
	assert.Equal(t, 4, s.Matches)
	assert.False(t, s.LengthMismatch)
	assert.Empty(t, s.Mismatches)
	assert.Empty(t, s.Missing)
	assert.Empty(t, s.Extra)
}

func TestScorePipelineMismatch(t *testing.T) {
	expected := []ExpectedPosting{
		exp(debit("5201", "2500")),
		exp(debit("5301", "300")),
		exp(debit("1501", "285.004")),
		exp(credit("2000", "3085")),
	}
	s := ScorePipeline(generated, expected)
	assert.InDelta(t, 0.75, s.Accuracy, 1e-9)
	require.Len(t, s.Mismatches, 1)
	assert.Equal(t, 1, s.Mismatches[0].Position)
	assert.Equal(t, "5301", s.Mismatches[0].Expected.AccountCode)
	assert.Equal(t, "5202", s.Mismatches[0].Generated.AccountCode)
}

func TestScorePipelineSideMatters(t *testing.T) {
	s := ScorePipeline(
		[]model.Posting{debit("2000", "10")},
		[]ExpectedPosting{exp(credit("2000", "10"))},
	)
	assert.Zero(t, s.Accuracy)
}

func TestScorePipelineLengthMismatch(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		expected := []ExpectedPosting{exp(generated[0]), exp(generated[1]), exp(generated[2]), exp(generated[3])}
		s := ScorePipeline(generated[:2], expected)
		assert.True(t, s.LengthMismatch)
		assert.InDelta(t, 0.5, s.Accuracy, 1e-9)
		assert.Equal(t, expected[2:], s.Missing)
		assert.Empty(t, s.Extra)
	})
	t.Run("extra", func(t *testing.T) {
		s := ScorePipeline(generated, []ExpectedPosting{exp(generated[0])})
		assert.True(t, s.LengthMismatch)
		assert.InDelta(t, 1.0, s.Accuracy, 1e-9)
		assert.Equal(t, generated[1:], s.Extra)
		assert.Equal(t, 4, s.Generated)
		assert.Equal(t, 1, s.Expected)
	})
}

func TestScorePipelineEmptyExpected(t *testing.T) {
	assert.InDelta(t, 1.0, ScorePipeline(nil, nil).Accuracy, 1e-9)
	s := ScorePipeline(generated, nil)
	assert.Zero(t, s.Accuracy)
	assert.Len(t, s.Extra, 4)
}

func TestScoreEmbeddingQuality(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewHashEmbedder(256)

	identical, err := ScoreEmbeddingQuality(ctx, emb, []Pair{{"office rent", "office rent"}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, identical, 1e-6)

	q, err := ScoreEmbeddingQuality(ctx, emb, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q, -1.0)
	assert.LessOrEqual(t, q, 1.0)

	_, err = ScoreEmbeddingQuality(ctx, emb, []Pair{})
	assert.Error(t, err)
}

type failingEmbedder struct{}

func (failingEmbedder) Model() string { return "failing" }
func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("offline")
}

func TestEvaluate(t *testing.T) {
	inv := model.InvoiceData{
		LineItems: []model.LineItem{{Description: "consulting", Amount: dec("4000")}},
		VATAmount: dec("760"),
		Total:     dec("4760"),
	}
	postings := []model.Posting{
		debit("5701", "4000"),
		{AccountCode: "1501", Description: "Input VAT", Debit: dec("760")},
		credit("2000", "4760"),
	}

	r, err := Evaluate(context.Background(), Input{Postings: postings, Invoice: inv, VATRate: dec("0.19")})
	require.NoError(t, err)
	assert.True(t, r.Balance.IsBalanced)
	assert.True(t, r.VATCompliant)
	assert.Nil(t, r.Pipeline)
	assert.Nil(t, r.EmbeddingQuality)

	r, err = Evaluate(context.Background(), Input{
		Postings: postings,
		Invoice:  inv,
		VATRate:  dec("0.07"),
		Expected: []ExpectedPosting{exp(postings[0])},
		Embedder: embedding.NewHashEmbedder(32),
	})
	require.NoError(t, err)
	assert.False(t, r.VATCompliant)
	require.NotNil(t, r.Pipeline)
	assert.True(t, r.Pipeline.LengthMismatch)
	require.NotNil(t, r.EmbeddingQuality)

	_, err = Evaluate(context.Background(), Input{Postings: postings, Invoice: inv, Embedder: failingEmbedder{}})
	assert.Error(t, err)
}

func TestLoadExpected(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "expected.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[
		{"account_code": "5201", "debit": 2500.00},
		{"account_code": "2000", "credit": "2500.00"}
	]`), 0o644))
	got, err := LoadExpected(jsonPath)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "5201", got[0].AccountCode)
	assert.True(t, got[0].Debit.Equal(dec("2500")))
	assert.True(t, got[0].Credit.IsZero())
	assert.True(t, got[1].Credit.Equal(dec("2500")))

	yamlPath := filepath.Join(dir, "expected.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- account_code: \"1501\"\n  debit: 285.00\n- account_code: \"2000\"\n  credit: 285\n"), 0o644))
	got, err = LoadExpected(yamlPath)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1501", got[0].AccountCode)
	assert.True(t, got[0].Debit.Equal(dec("285")))
	assert.True(t, got[1].Credit.Equal(dec("285")))

	_, err = LoadExpected(filepath.Join(dir, "expected.csv"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"not": "a list"}`), 0o644))
	_, err = LoadExpected(badPath)
	assert.Error(t, err)
}
