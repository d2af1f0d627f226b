package nl2cypher

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var defaultSchema []byte

// NodeKind is a node label and the properties the model should use for it
type NodeKind struct {
	Label      string   `yaml:"label"`
	Properties []string `yaml:"properties"`
}

// Example is a worked input/output pair shown to the model
type Example struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// Schema describes the graph conventions the system instruction is built from
type Schema struct {
	Instruction   string     `yaml:"instruction"`
	Rules         []string   `yaml:"rules"`
	Nodes         []NodeKind `yaml:"nodes"`
	Relationships []string   `yaml:"relationships"`
	Examples      []Example  `yaml:"examples"`
}

// LoadSchema reads the schema from path, or the built-in schema when path is empty
func LoadSchema(path string) (*Schema, error) {
	data := defaultSchema
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
	}
	return ParseSchema(data)
}

// ParseSchema decodes a YAML schema document
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if strings.TrimSpace(s.Instruction) == "" {
		return nil, fmt.Errorf("schema has no instruction")
	}
	return &s, nil
}

// SystemPrompt renders the schema into the system instruction
func (s *Schema) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(s.Instruction))
	sb.WriteString("\n")

	n := 0
	rule := func(text string) {
		n++
		sb.WriteString(fmt.Sprintf("%d. %s\n", n, text))
	}

	sb.WriteString("\nRules:\n")
	for _, r := range s.Rules {
		rule(r)
	}
	for _, node := range s.Nodes {
		rule(fmt.Sprintf("For %s nodes use the label :%s with properties %s",
			strings.ToLower(node.Label), node.Label, strings.Join(node.Properties, ", ")))
	}
	if len(s.Relationships) > 0 {
		rule(fmt.Sprintf("Common relationship types: %s", strings.Join(s.Relationships, ", ")))
	}

	if len(s.Examples) > 0 {
		sb.WriteString("\nExamples:\n")
		for _, ex := range s.Examples {
			sb.WriteString(fmt.Sprintf("Input: %q\nOutput: %s\n", ex.Input, ex.Output))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
