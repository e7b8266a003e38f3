package classify

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptConfig holds the classification prompts.
type PromptConfig struct {
	Classification struct {
		System       string `yaml:"system"`
		UserTemplate string `yaml:"user_template"`
	} `yaml:"classification"`
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *PromptConfig {
	p, err := parsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("built-in prompts: %v", err))
	}
	return p
}

// LoadPrompts reads prompts from a YAML file. Sections missing from the file
// keep their built-in values.
func LoadPrompts(path string) (*PromptConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}
	p := DefaultPrompts()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing prompts file: %w", err)
	}
	if _, err := template.New("user").Parse(p.Classification.UserTemplate); err != nil {
		return nil, fmt.Errorf("parsing user template: %w", err)
	}
	return p, nil
}

func parsePrompts(data []byte) (*PromptConfig, error) {
	var p PromptConfig
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RenderUser renders the user prompt for a request.
func (p *PromptConfig) RenderUser(req Request) (string, error) {
	return renderTemplate(p.Classification.UserTemplate, req)
}

func renderTemplate(text string, data any) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}
