// Package seed reads YAML pipeline definition files: a pipeline, its stages,
// its custom fields and optional sample opportunities.
package seed

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// PipelineFile is the top-level YAML structure of a pipeline definition.
type PipelineFile struct {
	Pipeline      PipelineSpec      `yaml:"pipeline"`
	Stages        []StageSpec       `yaml:"stages"`
	Fields        []FieldSpec       `yaml:"fields,omitempty"`
	Opportunities []OpportunitySpec `yaml:"opportunities,omitempty"`
}

type PipelineSpec struct {
	Name        string           `yaml:"name"`
	Color       string           `yaml:"color,omitempty"`
	Transitions *TransitionsSpec `yaml:"transitions,omitempty"`
}

// TransitionsSpec restricts stage moves. Mode "any" (the default) ignores Allowed.
type TransitionsSpec struct {
	Mode    string           `yaml:"mode"`
	Allowed []TransitionPair `yaml:"allowed,omitempty"`
}

type TransitionPair struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// StageSpec defines one column. Ref is the file-local key other entries use.
type StageSpec struct {
	Ref                 string `yaml:"ref"`
	Name                string `yaml:"name"`
	Color               string `yaml:"color,omitempty"`
	Order               int    `yaml:"order"`
	Probability         *int   `yaml:"probability,omitempty"`
	StagnationAlertDays *int   `yaml:"stagnation_alert_days,omitempty"`
	Won                 bool   `yaml:"won,omitempty"`
	Lost                bool   `yaml:"lost,omitempty"`
}

type FieldSpec struct {
	Name     string       `yaml:"name"`
	Label    string       `yaml:"label,omitempty"`
	Type     string       `yaml:"type"`
	Required bool         `yaml:"required,omitempty"`
	Options  []OptionSpec `yaml:"options,omitempty"`
	Group    string       `yaml:"group,omitempty"`
	Width    string       `yaml:"width,omitempty"`
	Order    int          `yaml:"order,omitempty"`
	Kanban   bool         `yaml:"kanban,omitempty"`
}

type OptionSpec struct {
	Value string `yaml:"value"`
	Label string `yaml:"label,omitempty"`
}

// OpportunitySpec seeds a deal. Value is a decimal string so money survives
// YAML's float parsing.
type OpportunitySpec struct {
	Name          string         `yaml:"name"`
	Stage         string         `yaml:"stage"`
	Value         *string        `yaml:"value,omitempty"`
	ExpectedClose *string        `yaml:"expected_close,omitempty"`
	Notes         string         `yaml:"notes,omitempty"`
	Custom        map[string]any `yaml:"custom,omitempty"`
}

// Load reads and parses a pipeline definition file.
func Load(path string) (*PipelineFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a pipeline definition. Unknown keys are rejected.
func Parse(r io.Reader) (*PipelineFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var pf PipelineFile
	if err := dec.Decode(&pf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing pipeline file: empty document")
		}
		return nil, fmt.Errorf("parsing pipeline file: %w", err)
	}
	return &pf, nil
}
