package termmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

// Filename returns the glossary filename for a target language, using the
// 2-letter base code (e.g. "glossary.zh.json").
func Filename(targetLang string) string {
	return "glossary." + normalizeLanguageCode(targetLang) + ".json"
}

// FilePath returns the full path to the glossary file in dir.
func FilePath(dir, targetLang string) string {
	return filepath.Join(dir, Filename(targetLang))
}

// Load reads a glossary from a JSON object of source -> target terms.
// Blank keys and values are dropped.
func Load(path string) (TermMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse glossary %s: %w", filepath.Base(path), err)
	}

	tm := make(TermMap, len(raw))
	for source, target := range raw {
		source, target = strings.TrimSpace(source), strings.TrimSpace(target)
		if source == "" || target == "" {
			continue
		}
		tm[source] = target
	}
	return tm, nil
}

// normalizeLanguageCode parses a language string and returns its 2-letter base code.
func normalizeLanguageCode(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}
