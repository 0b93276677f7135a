package catalog

import (
	"fmt"
	"strings"
)

// Prompt renders the question text the way it is presented to the user,
// including the answer instructions for its kind.
func (c *Catalog) Prompt(index int) (string, error) {
	q, err := c.Get(index)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Otázka %d/%d:*\n\n%s", index+1, c.Total(), q.Text())

	switch q := q.(type) {
	case ChoiceQuestion:
		sb.WriteString("\n\nVyberte jednu z možností:")
		for i, choice := range q.Choices {
			fmt.Fprintf(&sb, "\n%d. %s", i+1, choice)
		}
	case ScaleQuestion:
		fmt.Fprintf(&sb, "\n\nOhodnoťte na škále od %d do %d", q.Min, q.Max)
	case YesNoQuestion:
		sb.WriteString("\n\nOdpovězte: Ano nebo Ne")
		if q.HasFollowup {
			sb.WriteString("\n\n💡 _Pokud odpovíte 'Ano', budete požádáni o doplňující informace_")
		}
	case PhotoQuestion:
		sb.WriteString("\n\n📷 Prosím, nahrajte fotografii")
	}

	return sb.String(), nil
}

// FollowupPrompt returns the follow-up text for a YES_NO question flagged
// with has_followup, or "" when the question has none.
func (c *Catalog) FollowupPrompt(index int) string {
	q, err := c.Get(index)
	if err != nil {
		return ""
	}
	yn, ok := q.(YesNoQuestion)
	if !ok || !yn.HasFollowup {
		return ""
	}
	if yn.FollowupText == "" {
		return "Prosím, doplňte podrobnosti k předchozí odpovědi."
	}
	return yn.FollowupText
}
