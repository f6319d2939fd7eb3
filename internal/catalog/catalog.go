// Package catalog holds the ordered list of rounds a game is played with.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

//go:embed questions.yml
var defaultQuestions []byte

var (
	ErrEmptyCatalog    = errors.New("catalog has no questions")
	ErrInvalidQuestion = errors.New("invalid question")
)

type Catalog struct {
	questions []entity.Question
}

// Default - returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultQuestions)
}

// Load - reads the catalog from path, falling back to the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var questions []entity.Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}

	return New(questions)
}

func New(questions []entity.Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyCatalog
	}

	sorted := make([]entity.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	for i := range sorted {
		if err := validate(&sorted[i]); err != nil {
			return nil, fmt.Errorf("question %d: %w", sorted[i].Order, err)
		}
	}

	return &Catalog{questions: sorted}, nil
}

func validate(question *entity.Question) error {
	if len(question.Options) < 2 {
		return fmt.Errorf("%w: needs at least two options", ErrInvalidQuestion)
	}

	seen := make(map[string]struct{}, len(question.Options))
	correct := 0
	for _, option := range question.Options {
		if option.ID == "" {
			return fmt.Errorf("%w: option without id", ErrInvalidQuestion)
		}
		if _, ok := seen[option.ID]; ok {
			return fmt.Errorf("%w: duplicate option %s", ErrInvalidQuestion, option.ID)
		}
		seen[option.ID] = struct{}{}

		if option.IsCorrect {
			correct++
		}
	}

	if correct != 1 {
		return fmt.Errorf("%w: exactly one correct option required, got %d", ErrInvalidQuestion, correct)
	}

	if question.MaxOptions < 1 || question.MaxOptions >= len(question.Options) {
		return fmt.Errorf("%w: max_options must be between 1 and %d", ErrInvalidQuestion, len(question.Options)-1)
	}

	return nil
}

func (that *Catalog) Len() int {
	return len(that.questions)
}

// Question - returns the round at index i.
func (that *Catalog) Question(i int) (entity.Question, bool) {
	if i < 0 || i >= len(that.questions) {
		return entity.Question{}, false
	}

	return that.questions[i], true
}
