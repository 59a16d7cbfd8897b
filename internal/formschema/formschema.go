// Package formschema loads inspection form definitions and checks answers
// against them.
package formschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Question types
const (
	TypeText           = "text"
	TypeTextarea       = "textarea"
	TypeMultipleChoice = "multiple_choice"
	TypeRadio          = "radio"
)

// Answer key suffixes attached to a question id
const (
	ObservationSuffix = "_obs"
	PhotosSuffix      = "_photos"
)

var (
	ErrInvalidSchema   = errors.New("invalid form schema")
	ErrMissingAnswer   = errors.New("required question not answered")
	ErrInvalidOption   = errors.New("answer is not one of the options")
	ErrUnknownQuestion = errors.New("answer for unknown question")
)

//go:embed form.schema.json
var formSchemaJSON string

const formSchemaURL = "https://fieldsync.local/schemas/form.schema.json"

var compileFormSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(formSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(formSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(formSchemaURL)
})

// ID accepts both numeric and string identifiers.
type ID string

func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: id must be a scalar", node.Line)
	}
	*id = ID(node.Value)
	return nil
}

// Question is one field of a form
type Question struct {
	ID                ID       `yaml:"id" json:"id"`
	Type              string   `yaml:"type" json:"type"`
	Text              string   `yaml:"text" json:"text"`
	Required          bool     `yaml:"required" json:"required,omitempty"`
	Options           []string `yaml:"options" json:"options,omitempty"`
	ShowObservations  bool     `yaml:"show_additional_observations" json:"show_additional_observations,omitempty"`
	ObservationsLabel string   `yaml:"additional_observations" json:"additional_observations,omitempty"`
}

// IsChoice reports whether the answer must be one of the options.
func (q Question) IsChoice() bool {
	return q.Type == TypeMultipleChoice || q.Type == TypeRadio
}

// Section groups questions under a title
type Section struct {
	ID        ID         `yaml:"id" json:"id"`
	Title     string     `yaml:"title" json:"title"`
	Questions []Question `yaml:"questions" json:"questions"`
}

// Form is an inspection form definition
type Form struct {
	ID       ID        `yaml:"id" json:"id"`
	Title    string    `yaml:"title" json:"title"`
	Sections []Section `yaml:"sections" json:"sections"`
}

// Questions returns every question in section order.
func (f *Form) Questions() []Question {
	var out []Question
	for _, s := range f.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// Question looks a question up by id.
func (f *Form) Question(id string) (Question, bool) {
	for _, s := range f.Sections {
		for _, q := range s.Questions {
			if string(q.ID) == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

// Load reads a form definition from a YAML or JSON file.
func Load(path string) (*Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read form %s: %w", path, err)
	}
	form, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return form, nil
}

// Parse decodes and validates a form definition.
func Parse(data []byte) (*Form, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var form Form
	if err := yaml.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	seen := map[ID]bool{}
	for _, q := range form.Questions() {
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidSchema, q.ID)
		}
		seen[q.ID] = true
	}
	return &form, nil
}

func validateDocument(raw any) error {
	schema, err := compileFormSchema()
	if err != nil {
		return fmt.Errorf("compile form schema: %w", err)
	}
	// round-trip through JSON so the validator sees plain JSON values
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return nil
}

// ValidateAnswers checks answers against form: required questions must be
// answered, choice answers must be one of the options, and every key must
// belong to a question (optionally with the _obs or _photos suffix).
func ValidateAnswers(form *Form, answers map[string]any) error {
	var errs []error
	for _, q := range form.Questions() {
		value, ok := answers[string(q.ID)]
		if !ok || isEmpty(value) {
			if q.Required {
				errs = append(errs, fmt.Errorf("%w: %q (%s)", ErrMissingAnswer, q.Text, q.ID))
			}
			continue
		}
		if q.IsChoice() {
			s, isString := value.(string)
			if !isString || !slices.Contains(q.Options, s) {
				errs = append(errs, fmt.Errorf("%w: %q for %s (options: %s)", ErrInvalidOption, fmt.Sprint(value), q.ID, strings.Join(q.Options, ", ")))
			}
		}
	}

	for key := range answers {
		if _, ok := form.Question(key); ok {
			continue
		}
		if base, found := strings.CutSuffix(key, ObservationSuffix); found {
			if q, ok := form.Question(base); ok && q.ShowObservations {
				continue
			}
		}
		if base, found := strings.CutSuffix(key, PhotosSuffix); found {
			if _, ok := form.Question(base); ok {
				continue
			}
		}
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownQuestion, key))
	}
	return errors.Join(errs...)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

