package translator

import (
	"strings"

	"github.com/Wjlljw/pdf-translator/internal/termmap"
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const unknownSourceLanguage = "the source language"

// buildSystemPrompt builds the system prompt for translation
func buildSystemPrompt(sourceLanguage, targetLanguage string, terms termmap.MatchResult) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional translator of academic papers. Translate the text from " + sourceLanguage + " into " + targetLanguage + ".\n\n")

	prompt.WriteString("=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. Keep the academic register, precision and terminology of the original\n")
	prompt.WriteString("2. Copy every placeholder such as [FORMULA_0] exactly as written; never translate, renumber, or drop them\n")
	prompt.WriteString("3. Leave LaTeX formulas and citation markers such as [1] or (Smith et al., 2020) unchanged\n")
	prompt.WriteString("4. Keep established technical terms in the original language in parentheses on first use\n")
	prompt.WriteString("5. Translate figure and table captions but keep their numbering, e.g. Figure 3, Table 2\n")
	prompt.WriteString("6. Paragraphs are separated by blank lines; keep the same number of paragraphs in the same order\n")

	if len(terms.Matched) > 0 {
		prompt.WriteString("\n=== GLOSSARY ===\n")
		prompt.WriteString("Always translate these terms as given:\n")
		for _, source := range terms.Terms() {
			prompt.WriteString("- " + source + " -> " + terms.Matched[source] + "\n")
		}
	}

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translation. Do not include explanations, notes, or the reference context.\n")

	return prompt.String()
}

func buildUserPrompt(source, leadingContext string) string {
	if strings.TrimSpace(leadingContext) == "" {
		return "Translate the following:\n" + source
	}

	var b strings.Builder
	b.WriteString("Context (reference only, do not translate):\n")
	b.WriteString(leadingContext)
	b.WriteString("\n\nTranslate the following:\n")
	b.WriteString(source)
	return b.String()
}

func languageName(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// detectLanguageName guesses the language of text, falling back to a
// neutral phrase when detection is unreliable.
func detectLanguageName(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return unknownSourceLanguage
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return unknownSourceLanguage
	}
	return languageName(tag)
}
