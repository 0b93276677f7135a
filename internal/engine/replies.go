package engine

import "strings"

// Button is an inline action attached to a reply. Data is the callback
// payload in "action:token" form.
type Button struct {
	Text string
	Data string
}

// Reply is one outgoing message. PromptToken is set when the reply is a
// question prompt; the transport binds the sent message id to it. Photo is a
// transport file reference to re-send instead of text.
type Reply struct {
	Text        string
	Buttons     []Button
	PromptToken string
	Photo       string
}

const (
	// ActionSkip skips the question the button was attached to.
	ActionSkip = "skip"
	// ActionYes and ActionNo answer the yes/no question the button was
	// attached to.
	ActionYes = "yes"
	ActionNo  = "no"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown neutralizes user-provided text interpolated into Markdown
// replies so a stray formatting character cannot break the whole message.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

const (
	textWelcome = "Vítejte v dotazníku péče o pleť! 🌸\n\n" +
		"Položím vám několik otázek o vaší pleti a návycích. " +
		"Otázky, u kterých je to dovoleno, můžete přeskočit tlačítkem níže.\n\n" +
		"Začínáme první otázkou:"

	textContinue = "Vítejte zpět! Pokračujeme tam, kde jste skončili."

	textCompleted = "✅ *Dotazník je dokončen!*\n\n" +
		"Děkujeme za vaše odpovědi. Naše specialistka se vám brzy ozve s doporučením péče.\n\n" +
		"Své odpovědi si můžete prohlédnout příkazem /vysledky. Nové vyplnění začnete příkazem /restart."

	textAlreadyCompleted = "Dotazník jste již dokončili. " +
		"Odpovědi zobrazí /vysledky, nové vyplnění začne /restart."

	textRestarted = "🔄 Dotazník byl vynulován. Začínáme znovu:"

	textStaleButton = "Toto tlačítko už není platné. Odpovězte prosím na aktuální otázku."

	textUnexpectedPhoto = "Fotografii nyní neočekávám. Odpovězte prosím textem na aktuální otázku."

	textQuestionSkipped = "⏭ Otázka přeskočena."

	textNoResults = "Zatím nemáte žádné odpovědi. Dotazník začnete příkazem /start."

	textBeginHint = "Dotazník ještě nezačal. Použijte příkaz /start, nebo napište 'začít'."

	textSupportSuffix = "\n\n_Až budete chtít pokračovat v dotazníku, odpovězte na poslední otázku._"
)
