package embedding

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	model        TEXT    NOT NULL,
	content_hash TEXT    NOT NULL,
	dim          INTEGER NOT NULL,
	vector       BLOB    NOT NULL,
	created_at   TEXT    NOT NULL,
	PRIMARY KEY (model, content_hash)
)`

// CachedEmbedder memoises another Embedder in a SQLite database keyed by
// model name and the SHA-256 of the text. Only cache misses reach the
// wrapped embedder.
type CachedEmbedder struct {
	next   Embedder
	db     *sql.DB
	logger *zap.Logger
}

// NewCachedEmbedder opens (creating if needed) the cache database at path.
func NewCachedEmbedder(path string, next Embedder, logger *zap.Logger) (*CachedEmbedder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating embedding cache schema: %w", err)
	}

	logger.Debug("Embedding cache opened", zap.String("path", path), zap.String("model", next.Model()))
	return &CachedEmbedder{next: next, db: db, logger: logger}, nil
}

// Model returns the wrapped embedder's model.
func (c *CachedEmbedder) Model() string { return c.next.Model() }

// Close closes the cache database.
func (c *CachedEmbedder) Close() error {
	return c.db.Close()
}

// Embed returns cached vectors where available and embeds the rest through
// the wrapped embedder, storing the new vectors.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := c.next.Model()
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))

	// Distinct uncached texts, each mapped to every position it occupies.
	var missTexts []string
	missPositions := map[string][]int{}
	for i, text := range texts {
		hashes[i] = contentHash(text)
		if positions, seen := missPositions[hashes[i]]; seen {
			missPositions[hashes[i]] = append(positions, i)
			continue
		}
		vec, err := c.lookup(ctx, model, hashes[i])
		if err != nil {
			return nil, err
		}
		if vec != nil {
			out[i] = vec
			continue
		}
		missPositions[hashes[i]] = []int{i}
		missTexts = append(missTexts, text)
	}

	c.logger.Debug("Embedding cache lookup",
		zap.String("model", model),
		zap.Int("texts", len(texts)),
		zap.Int("misses", len(missTexts)))
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: got %d vectors for %d texts", len(vectors), len(missTexts))
	}

	err = c.withTransaction(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC().Format(time.RFC3339)
		for j, text := range missTexts {
			h := contentHash(text)
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO embeddings (model, content_hash, dim, vector, created_at) VALUES (?, ?, ?, ?, ?)`,
				model, h, len(vectors[j]), encodeVector(vectors[j]), now); err != nil {
				return fmt.Errorf("storing embedding: %w", err)
			}
			for _, pos := range missPositions[h] {
				out[pos] = vectors[j]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, model, hash string) ([]float32, error) {
	var blob []byte
	var dim int
	err := c.db.QueryRowContext(ctx,
		`SELECT dim, vector FROM embeddings WHERE model = ? AND content_hash = ?`, model, hash).Scan(&dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding cache: %w", err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, err
	}
	if len(vec) != dim {
		return nil, fmt.Errorf("embedding cache: stored dimension %d, decoded %d", dim, len(vec))
	}
	return vec, nil
}

func (c *CachedEmbedder) withTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning cache transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Error("Failed to rollback cache transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache transaction: %w", err)
	}
	return nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// encodeVector stores float32 values little-endian, four bytes each.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding cache: corrupt vector of %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
