// Package catalog holds the ordered, immutable questionnaire definition.
// The catalog is loaded once at startup and is safe for concurrent reads.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

var (
	ErrMalformedCatalog = errors.New("malformed question catalog")
	ErrNotFound         = errors.New("question not found")
)

type Kind string

const (
	KindText   Kind = "text"
	KindChoice Kind = "choice"
	KindScale  Kind = "scale"
	KindYesNo  Kind = "yes_no"
	KindPhoto  Kind = "photo"
)

const (
	defaultScaleMin = 1
	defaultScaleMax = 10
)

// Question is a closed set of five variants; each carries only the fields
// its kind needs. Construct them through Load/Parse only.
type Question interface {
	Index() int
	Text() string
	Kind() Kind
	Required() bool

	sealed()
}

type base struct {
	index    int
	text     string
	required bool
}

func (b base) Index() int     { return b.index }
func (b base) Text() string   { return b.text }
func (b base) Required() bool { return b.required }
func (b base) sealed()        {}

type TextQuestion struct{ base }

func (TextQuestion) Kind() Kind { return KindText }

type ChoiceQuestion struct {
	base
	Choices []string
}

func (ChoiceQuestion) Kind() Kind { return KindChoice }

type ScaleQuestion struct {
	base
	Min int
	Max int
}

func (ScaleQuestion) Kind() Kind { return KindScale }

type YesNoQuestion struct {
	base
	HasFollowup  bool
	FollowupText string
}

func (YesNoQuestion) Kind() Kind { return KindYesNo }

type PhotoQuestion struct{ base }

func (PhotoQuestion) Kind() Kind { return KindPhoto }

// Catalog is read-only after Load.
type Catalog struct {
	questions []Question
}

// rawEntry is the structured form of a catalog entry. A bare JSON string is
// shorthand for {"text": ..., "type": "text"}.
type rawEntry struct {
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	Choices      []string `json:"choices"`
	ScaleMin     *int     `json:"scale_min"`
	ScaleMax     *int     `json:"scale_max"`
	Required     *bool    `json:"required"`
	HasFollowup  bool     `json:"has_followup"`
	FollowupText string   `json:"followup_text"`
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from a JSON array. Any malformed entry aborts the
// whole load; a partial catalog must never be served.
func Parse(data []byte) (*Catalog, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: not a JSON array: %v", ErrMalformedCatalog, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrMalformedCatalog)
	}

	questions := make([]Question, 0, len(entries))
	for i, entry := range entries {
		q, err := parseEntry(i, entry)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return &Catalog{questions: questions}, nil
}

func parseEntry(index int, entry json.RawMessage) (Question, error) {
	var text string
	if err := json.Unmarshal(entry, &text); err == nil {
		return buildQuestion(index, rawEntry{Text: text, Type: string(KindText)})
	}

	var raw rawEntry
	if err := json.Unmarshal(entry, &raw); err != nil {
		return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedCatalog, index, err)
	}
	return buildQuestion(index, raw)
}

func buildQuestion(index int, raw rawEntry) (Question, error) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: entry %d: empty question text", ErrMalformedCatalog, index)
	}

	required := true
	if raw.Required != nil {
		required = *raw.Required
	}
	b := base{index: index, text: text, required: required}

	kind := Kind(raw.Type)
	if raw.Type == "" {
		kind = KindText
	}

	switch kind {
	case KindText:
		return TextQuestion{base: b}, nil

	case KindChoice:
		if len(raw.Choices) == 0 {
			return nil, fmt.Errorf("%w: entry %d: choice question without choices", ErrMalformedCatalog, index)
		}
		choices := make([]string, len(raw.Choices))
		for i, c := range raw.Choices {
			c = strings.TrimSpace(c)
			if c == "" {
				return nil, fmt.Errorf("%w: entry %d: empty choice at position %d", ErrMalformedCatalog, index, i+1)
			}
			choices[i] = c
		}
		return ChoiceQuestion{base: b, Choices: choices}, nil

	case KindScale:
		min, max := defaultScaleMin, defaultScaleMax
		if raw.ScaleMin != nil {
			min = *raw.ScaleMin
		}
		if raw.ScaleMax != nil {
			max = *raw.ScaleMax
		}
		if min > max {
			return nil, fmt.Errorf("%w: entry %d: scale bounds %d..%d", ErrMalformedCatalog, index, min, max)
		}
		return ScaleQuestion{base: b, Min: min, Max: max}, nil

	case KindYesNo:
		return YesNoQuestion{base: b, HasFollowup: raw.HasFollowup, FollowupText: strings.TrimSpace(raw.FollowupText)}, nil

	case KindPhoto:
		return PhotoQuestion{base: b}, nil

	default:
		return nil, fmt.Errorf("%w: entry %d: unknown question type %q", ErrMalformedCatalog, index, raw.Type)
	}
}

func (c *Catalog) Total() int {
	return len(c.questions)
}

func (c *Catalog) Get(index int) (Question, error) {
	if index < 0 || index >= len(c.questions) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNotFound, index, len(c.questions))
	}
	return c.questions[index], nil
}
