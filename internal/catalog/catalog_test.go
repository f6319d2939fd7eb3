package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/atrapa-milio/internal/entity"
)

func TestDefault(t *testing.T) {
	// When: loading the built-in catalog
	catalog, err := Default()

	// Then: eight rounds ending with a winner-take-all final
	require.NoError(t, err)
	assert.Equal(t, 8, catalog.Len())

	first, ok := catalog.Question(0)
	require.True(t, ok)
	assert.Equal(t, "A", first.CorrectOption())
	assert.Equal(t, 3, first.MaxOptions)

	final, ok := catalog.Question(7)
	require.True(t, ok)
	assert.Equal(t, entity.QuestionFinal, final.Type)
	assert.Equal(t, 1, final.MaxOptions)

	_, ok = catalog.Question(8)
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	t.Run("Reads questions from a file and orders them", func(t *testing.T) {
		// Given: a questions file listed out of order
		path := filepath.Join(t.TempDir(), "questions.yml")
		data := `
- order: 2
  text: second
  max_options: 1
  options: [{id: A, text: a, correct: true}, {id: B, text: b}]
- order: 1
  text: first
  max_options: 1
  options: [{id: A, text: a}, {id: B, text: b, correct: true}]
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		// When: loading it
		catalog, err := Load(path)

		// Then: rounds are sorted by order
		require.NoError(t, err)
		first, _ := catalog.Question(0)
		assert.Equal(t, "first", first.Text)
	})

	t.Run("Empty path falls back to the built-in catalog", func(t *testing.T) {
		catalog, err := Load("")

		require.NoError(t, err)
		assert.Equal(t, 8, catalog.Len())
	})
}

func TestNew_Validation(t *testing.T) {
	options := func(correct ...bool) []entity.Option {
		out := make([]entity.Option, 0, len(correct))
		for i, c := range correct {
			out = append(out, entity.Option{ID: string(rune('A' + i)), IsCorrect: c})
		}
		return out
	}

	tests := []struct {
		name     string
		question entity.Question
	}{
		{"no correct option", entity.Question{Options: options(false, false), MaxOptions: 1}},
		{"two correct options", entity.Question{Options: options(true, true), MaxOptions: 1}},
		{"breadth equals option count", entity.Question{Options: options(true, false), MaxOptions: 2}},
		{"zero breadth", entity.Question{Options: options(true, false), MaxOptions: 0}},
		{"single option", entity.Question{Options: options(true), MaxOptions: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]entity.Question{tt.question})

			assert.ErrorIs(t, err, ErrInvalidQuestion)
		})
	}

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}
