// Package answers validates raw user input against a question definition
// and produces canonical answer values. It is pure: nothing here touches
// storage or transport.
package answers

import (
	"fmt"
	"strconv"
	"strings"

	"carebot/internal/catalog"
)

type Reason string

const (
	ReasonEmptyAnswer    Reason = "empty_answer"
	ReasonInvalidChoice  Reason = "invalid_choice"
	ReasonOutOfRange     Reason = "out_of_range"
	ReasonAmbiguousYesNo Reason = "ambiguous_yes_no"
	ReasonExpectedPhoto  Reason = "expected_photo"
)

// Rejection explains why an input was not accepted. Message is the
// user-facing re-prompt in Czech.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("answer rejected (%s): %s", r.Reason, r.Message)
}

const (
	CanonicalAffirm = "Ano"
	CanonicalNegate = "Ne"
)

// Bilingual yes/no vocabulary; matching is case-insensitive and
// diacritic-exact.
var (
	affirmWords = map[string]struct{}{
		"ano": {}, "yes": {}, "y": {}, "1": {}, "pravda": {}, "true": {}, "áno": {},
	}
	negateWords = map[string]struct{}{
		"ne": {}, "no": {}, "n": {}, "0": {}, "nepravda": {}, "false": {}, "nie": {},
	}
)

// IsAffirmative reports whether the input is a bare affirmative word.
func IsAffirmative(input string) bool {
	_, ok := affirmWords[strings.ToLower(strings.TrimSpace(input))]
	return ok
}

// Validate checks a free-text input against the question and returns the
// canonical stored value. A PHOTO question never accepts text.
func Validate(q catalog.Question, input string) (string, *Rejection) {
	input = strings.TrimSpace(input)

	switch q := q.(type) {
	case catalog.TextQuestion:
		return validateText(input)
	case catalog.ChoiceQuestion:
		return validateChoice(q, input)
	case catalog.ScaleQuestion:
		return validateScale(q, input)
	case catalog.YesNoQuestion:
		return validateYesNo(input)
	case catalog.PhotoQuestion:
		return "", &Rejection{
			Reason:  ReasonExpectedPhoto,
			Message: "📷 Očekávám fotografii. Klikněte na 📎 a vyberte fotku z vašeho zařízení.",
		}
	default:
		return "", &Rejection{Reason: ReasonEmptyAnswer, Message: "Prosím, zadejte odpověď"}
	}
}

func validateText(input string) (string, *Rejection) {
	if input == "" {
		return "", &Rejection{Reason: ReasonEmptyAnswer, Message: "Prosím, zadejte odpověď"}
	}
	return input, nil
}

func validateChoice(q catalog.ChoiceQuestion, input string) (string, *Rejection) {
	// 1-based numeral first, then case-insensitive exact text match.
	if num, err := strconv.Atoi(input); err == nil {
		if num >= 1 && num <= len(q.Choices) {
			return q.Choices[num-1], nil
		}
	}
	for _, choice := range q.Choices {
		if strings.EqualFold(input, choice) {
			return choice, nil
		}
	}
	return "", &Rejection{
		Reason:  ReasonInvalidChoice,
		Message: fmt.Sprintf("Prosím, vyberte číslo od 1 do %d nebo napište jednu z možností", len(q.Choices)),
	}
}

func validateScale(q catalog.ScaleQuestion, input string) (string, *Rejection) {
	reject := &Rejection{
		Reason:  ReasonOutOfRange,
		Message: fmt.Sprintf("Prosím, zadejte číslo od %d do %d", q.Min, q.Max),
	}
	value, err := strconv.Atoi(input)
	if err != nil {
		return "", reject
	}
	if value < q.Min || value > q.Max {
		return "", reject
	}
	return strconv.Itoa(value), nil
}

func validateYesNo(input string) (string, *Rejection) {
	word := strings.ToLower(input)
	if _, ok := affirmWords[word]; ok {
		return CanonicalAffirm, nil
	}
	if _, ok := negateWords[word]; ok {
		return CanonicalNegate, nil
	}
	return "", &Rejection{
		Reason:  ReasonAmbiguousYesNo,
		Message: "Prosím, odpovězte 'Ano' nebo 'Ne'",
	}
}
