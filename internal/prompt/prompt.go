// Package prompt composes the instruction block sent ahead of each utterance.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed instructions.yaml
var defaultInstructions []byte

// Instructions is the YAML shape of the instruction block.
type Instructions struct {
	Preamble     string   `yaml:"preamble"`
	Template     string   `yaml:"template"`
	Rules        []string `yaml:"rules"`
	RequestLabel string   `yaml:"request_label"`
}

// Builder renders the instruction header once and prefixes it to every
// utterance. Build is deterministic.
type Builder struct {
	header string
	label  string
}

// NewBuilder loads the embedded instructions.
func NewBuilder() (*Builder, error) {
	return LoadBuilder(defaultInstructions)
}

// LoadBuilder parses instructions from YAML.
func LoadBuilder(raw []byte) (*Builder, error) {
	var in Instructions
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("parse prompt instructions: %w", err)
	}
	if strings.TrimSpace(in.Template) == "" {
		return nil, fmt.Errorf("prompt instructions: template is required")
	}
	if len(in.Rules) == 0 {
		return nil, fmt.Errorf("prompt instructions: at least one rule is required")
	}
	label := strings.TrimSpace(in.RequestLabel)
	if label == "" {
		label = "User request:"
	}
	return &Builder{header: renderHeader(in), label: label}, nil
}

func renderHeader(in Instructions) string {
	var b strings.Builder
	if p := strings.TrimSpace(in.Preamble); p != "" {
		b.WriteString(p)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Visual template: %s\n", strings.TrimSpace(in.Template))
	b.WriteString("Rules:\n")
	for i, r := range in.Rules {
		// Collapse folded YAML lines so each rule stays on one line.
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(strings.Fields(r), " "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Build returns the full prompt for one utterance.
func (b *Builder) Build(utterance string) string {
	return b.header + "\n\n" + b.label + " " + strings.TrimSpace(utterance)
}
