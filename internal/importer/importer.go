// Package importer reads structured invoices from the import directory.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/journalrag/internal/model"
)

// Parser converts a structured invoice document into InvoiceData.
type Parser interface {
	Parse(r io.Reader) (model.InvoiceData, error)
	Format() string
	Extensions() []string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
	byExt   map[string]Parser
}

// FileInfo describes an invoice file in the import directory.
type FileInfo struct {
	Name   string
	Path   string
	Size   int64
	Format string
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser), byExt: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format or extension.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if _, ok := r.byExt[ext]; ok {
			panic("duplicate parser extension: " + ext)
		}
		r.byExt[ext] = p
	}
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ForFile returns the parser for a file name's extension, or nil.
func (r *Registry) ForFile(name string) Parser {
	return r.byExt[strings.ToLower(filepath.Ext(name))]
}

// ParseFile opens path and parses it with the parser for its extension.
func (r *Registry) ParseFile(path string) (model.InvoiceData, error) {
	p := r.ForFile(path)
	if p == nil {
		return model.InvoiceData{}, fmt.Errorf("no parser for %s", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return model.InvoiceData{}, fmt.Errorf("opening invoice: %w", err)
	}
	defer f.Close()

	inv, err := p.Parse(f)
	if err != nil {
		return model.InvoiceData{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return inv, nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&JSONParser{})
	r.Register(&YAMLParser{})
	return r
}

// ParseFile parses path with the default registry.
func ParseFile(path string) (model.InvoiceData, error) {
	return DefaultRegistry().ParseFile(path)
}

// importDir is the subdirectory for invoices awaiting journaling.
const importDir = "import"

// processedDir is the subdirectory for journaled invoices.
const processedDir = "import/processed"

// Scan returns invoice files in <repoRoot>/import/ that the registry can parse,
// in name order.
func (r *Registry) Scan(repoRoot string) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := r.ForFile(e.Name())
		if p == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name:   e.Name(),
			Path:   filepath.Join(dir, e.Name()),
			Size:   info.Size(),
			Format: p.Format(),
		})
	}
	return files, nil
}

// Scan returns parseable invoice files using the default registry.
func Scan(repoRoot string) ([]FileInfo, error) {
	return DefaultRegistry().Scan(repoRoot)
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
