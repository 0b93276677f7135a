package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ShorthandStringIsTextQuestion(t *testing.T) {
	cat, err := Parse([]byte(`["Kolik je vám let?"]`))
	require.NoError(t, err)
	require.Equal(t, 1, cat.Total())

	q, err := cat.Get(0)
	require.NoError(t, err)
	assert.Equal(t, KindText, q.Kind())
	assert.Equal(t, "Kolik je vám let?", q.Text())
	assert.True(t, q.Required())
	assert.Equal(t, 0, q.Index())
}

func TestParse_StructuredEntries(t *testing.T) {
	data := []byte(`[
		{"text": "Kolik je vám let?", "type": "text"},
		{"text": "Kouříte?", "type": "yes_no", "has_followup": true, "followup_text": "Kolik cigaret denně?"},
		{"text": "Jaký máte typ pleti?", "type": "choice", "choices": ["Suchá", "Mastná", "Smíšená"], "required": false},
		{"text": "Jak hodnotíte svou pleť?", "type": "scale", "scale_min": 1, "scale_max": 5},
		{"text": "Nahrajte fotografii pleti", "type": "photo", "required": false}
	]`)
	cat, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 5, cat.Total())

	q1, _ := cat.Get(1)
	yn, ok := q1.(YesNoQuestion)
	require.True(t, ok)
	assert.True(t, yn.HasFollowup)
	assert.Equal(t, "Kolik cigaret denně?", yn.FollowupText)

	q2, _ := cat.Get(2)
	ch, ok := q2.(ChoiceQuestion)
	require.True(t, ok)
	assert.Equal(t, []string{"Suchá", "Mastná", "Smíšená"}, ch.Choices)
	assert.False(t, ch.Required())

	q3, _ := cat.Get(3)
	sc, ok := q3.(ScaleQuestion)
	require.True(t, ok)
	assert.Equal(t, 1, sc.Min)
	assert.Equal(t, 5, sc.Max)

	q4, _ := cat.Get(4)
	assert.Equal(t, KindPhoto, q4.Kind())
	assert.False(t, q4.Required())
}

func TestParse_Defaults(t *testing.T) {
	cat, err := Parse([]byte(`[
		{"text": "Volný text"},
		{"text": "Škála", "type": "scale"}
	]`))
	require.NoError(t, err)

	q0, _ := cat.Get(0)
	assert.Equal(t, KindText, q0.Kind(), "missing type defaults to text")
	assert.True(t, q0.Required(), "missing required defaults to true")

	q1, _ := cat.Get(1)
	sc := q1.(ScaleQuestion)
	assert.Equal(t, defaultScaleMin, sc.Min)
	assert.Equal(t, defaultScaleMax, sc.Max)
}

func TestParse_MalformedEntriesAbortWholeLoad(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"text": "x"}`},
		{"empty array", `[]`},
		{"empty text", `[{"text": "  ", "type": "text"}]`},
		{"unknown type", `[{"text": "x", "type": "multiline"}]`},
		{"choice without choices", `[{"text": "x", "type": "choice"}]`},
		{"empty choice", `[{"text": "x", "type": "choice", "choices": ["a", " "]}]`},
		{"inverted scale bounds", `[{"text": "x", "type": "scale", "scale_min": 5, "scale_max": 1}]`},
		{"valid first entry does not save bad second", `["ok", {"text": "x", "type": "nope"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Parse([]byte(tt.data))
			assert.Nil(t, cat)
			assert.ErrorIs(t, err, ErrMalformedCatalog)
		})
	}
}

func TestGet_OutOfRange(t *testing.T) {
	cat, err := Parse([]byte(`["jedna"]`))
	require.NoError(t, err)

	_, err = cat.Get(-1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cat.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Kolik je vám let?", {"text": "Kouříte?", "type": "yes_no"}]`), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Total())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPrompt_RendersPerKind(t *testing.T) {
	cat, err := Parse([]byte(`[
		{"text": "Kolik je vám let?", "type": "text"},
		{"text": "Typ pleti?", "type": "choice", "choices": ["Suchá", "Mastná"]},
		{"text": "Spokojenost?", "type": "scale", "scale_min": 1, "scale_max": 5},
		{"text": "Kouříte?", "type": "yes_no", "has_followup": true},
		{"text": "Fotka pleti", "type": "photo"}
	]`))
	require.NoError(t, err)

	text, err := cat.Prompt(0)
	require.NoError(t, err)
	assert.Contains(t, text, "*Otázka 1/5:*")
	assert.Contains(t, text, "Kolik je vám let?")

	choice, _ := cat.Prompt(1)
	assert.Contains(t, choice, "Vyberte jednu z možností:")
	assert.Contains(t, choice, "1. Suchá")
	assert.Contains(t, choice, "2. Mastná")

	scale, _ := cat.Prompt(2)
	assert.Contains(t, scale, "od 1 do 5")

	yesNo, _ := cat.Prompt(3)
	assert.Contains(t, yesNo, "Ano nebo Ne")
	assert.Contains(t, yesNo, "doplňující informace")

	photo, _ := cat.Prompt(4)
	assert.Contains(t, photo, "nahrajte fotografii")

	_, err = cat.Prompt(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowupPrompt(t *testing.T) {
	cat, err := Parse([]byte(`[
		{"text": "Kouříte?", "type": "yes_no", "has_followup": true, "followup_text": "Kolik cigaret denně?"},
		{"text": "Alergie?", "type": "yes_no", "has_followup": true},
		{"text": "Sport?", "type": "yes_no"},
		{"text": "Věk?", "type": "text"}
	]`))
	require.NoError(t, err)

	assert.Equal(t, "Kolik cigaret denně?", cat.FollowupPrompt(0))
	assert.Equal(t, "Prosím, doplňte podrobnosti k předchozí odpovědi.", cat.FollowupPrompt(1))
	assert.Empty(t, cat.FollowupPrompt(2), "yes_no without followup")
	assert.Empty(t, cat.FollowupPrompt(3), "non yes_no question")
	assert.Empty(t, cat.FollowupPrompt(42), "out of range")
}
