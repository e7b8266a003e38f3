package importer

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/journalrag/internal/model"
)

// JSONParser reads invoices shaped {"line_items": [...], "vat_amount", "total"}.
type JSONParser struct{}

// Format returns the parser name.
func (p *JSONParser) Format() string { return "json" }

// Extensions returns the file extensions handled.
func (p *JSONParser) Extensions() []string { return []string{".json"} }

// Parse decodes one invoice, rejecting unknown fields and negative amounts.
func (p *JSONParser) Parse(r io.Reader) (model.InvoiceData, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var inv model.InvoiceData
	if err := dec.Decode(&inv); err != nil {
		return model.InvoiceData{}, fmt.Errorf("decoding JSON invoice: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return model.InvoiceData{}, err
	}
	return inv, nil
}

// YAMLParser reads the same invoice shape from YAML.
type YAMLParser struct{}

// Format returns the parser name.
func (p *YAMLParser) Format() string { return "yaml" }

// Extensions returns the file extensions handled.
func (p *YAMLParser) Extensions() []string { return []string{".yaml", ".yml"} }

// Parse decodes one invoice, rejecting unknown fields and negative amounts.
func (p *YAMLParser) Parse(r io.Reader) (model.InvoiceData, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var inv model.InvoiceData
	if err := dec.Decode(&inv); err != nil {
		return model.InvoiceData{}, fmt.Errorf("decoding YAML invoice: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return model.InvoiceData{}, err
	}
	return inv, nil
}
