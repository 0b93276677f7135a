package bot

import (
	"fmt"
	"strings"

	"carebot/internal/store"
)

const helpText = `ℹ️ *Nápověda*

/start - zahájit nebo obnovit dotazník
/restart - vynulovat odpovědi a začít znovu
/preskocit - přeskočit aktuální otázku
/vysledky - zobrazit vaše dosavadní odpovědi
/statistiky - souhrnná statistika dotazníku
/help - tato nápověda

Na otázky odpovídejte přímo do chatu. Pokud máte vlastní dotaz ohledně péče o pleť, napište jej a poradkyně vám odpoví.`

// FormatStatistics renders the aggregate summary for the /statistiky command.
func FormatStatistics(stats store.Statistics) string {
	var sb strings.Builder
	sb.WriteString("📊 *Statistika dotazníku*\n\n")
	fmt.Fprintf(&sb, "Uživatelů celkem: %d\n", stats.TotalUsers)
	fmt.Fprintf(&sb, "Dokončeno: %d (%.0f %%)\n", stats.CompletedUsers, stats.CompletionRate*100)
	fmt.Fprintf(&sb, "Rozpracováno: %d\n", stats.ActiveUsers)
	fmt.Fprintf(&sb, "Nahraných fotografií: %d\n", stats.TotalPhotos)
	fmt.Fprintf(&sb, "Přeskočených otázek: %d\n", stats.SkippedText+stats.SkippedPhotos+stats.SkippedFollowups)
	if stats.AverageAge > 0 {
		fmt.Fprintf(&sb, "Průměrný věk: %.1f let\n", stats.AverageAge)
	}
	fmt.Fprintf(&sb, "Kuřáků: %d\n", stats.SmokersCount)
	return sb.String()
}

// messageLimit is the Bot API maximum text length per message.
const messageLimit = 4096

// splitMessage cuts text into chunks no longer than limit, preferring
// newline boundaries so Markdown blocks stay intact.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// largestPhoto picks the highest-resolution variant Telegram offers.
func largestPhoto(photos []PhotoSize) PhotoSize {
	best := photos[0]
	for _, p := range photos[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}
