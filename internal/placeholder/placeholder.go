// Package placeholder shields formulas from the model by swapping them for
// opaque tokens before translation and restoring them afterwards.
package placeholder

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const tokenName = "FORMULA_"

var mathEnvironments = []string{
	"equation", "align", "gather", "multline", "eqnarray",
	"displaymath", "math", "cases", "split", "alignat", "flalign",
}

// patterns are ordered by priority: an earlier pattern wins a tie on start.
var patterns = buildPatterns()

func buildPatterns() []*regexp.Regexp {
	ret := make([]*regexp.Regexp, 0, len(mathEnvironments)*2+5)
	for _, env := range mathEnvironments {
		for _, name := range []string{env, env + "*"} {
			q := regexp.QuoteMeta(name)
			ret = append(ret, regexp.MustCompile(`\\begin\{`+q+`\}[\s\S]*?\\end\{`+q+`\}`))
		}
	}
	ret = append(ret,
		regexp.MustCompile(`\$\$[\s\S]+?\$\$`),
		regexp.MustCompile(`\\\[[\s\S]+?\\\]`),
		regexp.MustCompile(`\\\([\s\S]+?\\\)`),
		regexp.MustCompile(`\$[^$\n]+?\$`),
		regexp.MustCompile(`[α-ωΑ-Ω∑∫∂∇±≤≥≈≠∞√∏×÷∈∉⊂⊆∪∩→⇒⇔∀∃]+`),
	)
	return ret
}

// Mapping records the spans replaced by Mask, indexed by token number.
type Mapping struct {
	Prefix string   `json:"prefix"`
	Spans  []string `json:"spans"`
}

// Token returns the placeholder for span i.
func (m Mapping) Token(i int) string {
	return m.Prefix + strconv.Itoa(i) + "]"
}

func (m Mapping) Len() int {
	return len(m.Spans)
}

type span struct {
	start, end int
	priority   int
}

// Find returns the protected spans of text in order, without overlaps.
func Find(text string) [][2]int {
	var candidates []span
	for p, re := range patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, span{start: loc[0], end: loc[1], priority: p})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.end-a.start != b.end-b.start {
			return a.end-a.start > b.end-b.start
		}
		return a.priority < b.priority
	})

	ret := make([][2]int, 0, len(candidates))
	lastEnd := 0
	for _, c := range candidates {
		if c.start < lastEnd {
			continue
		}
		ret = append(ret, [2]int{c.start, c.end})
		lastEnd = c.end
	}
	return ret
}

// Mask replaces every protected span with a token. Tokens never collide
// with text already present in the input.
func Mask(text string) (string, Mapping) {
	m := Mapping{Prefix: tokenPrefix(text)}
	spans := Find(text)
	if len(spans) == 0 {
		return text, m
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for i, s := range spans {
		b.WriteString(text[last:s[0]])
		b.WriteString(m.Token(i))
		m.Spans = append(m.Spans, text[s[0]:s[1]])
		last = s[1]
	}
	b.WriteString(text[last:])
	return b.String(), m
}

// tokenPrefix salts the token prefix until neither the prefix nor any
// variant Unmask would accept already occurs in text.
func tokenPrefix(text string) string {
	prefix := "[" + tokenName
	candidate := prefix
	for k := 1; collides(text, candidate); k++ {
		candidate = prefix + strconv.Itoa(k) + "_"
	}
	return candidate
}

func collides(text, prefix string) bool {
	return strings.Contains(text, prefix) || tokenPattern(prefix).MatchString(text)
}

// Unmask restores every token found in text and returns the tokens that
// did not survive translation. Missing spans are not reinserted.
func Unmask(text string, m Mapping) (string, []string) {
	if len(m.Spans) == 0 {
		return text, nil
	}

	seen := make([]bool, len(m.Spans))
	re := tokenPattern(m.Prefix)
	restored := re.ReplaceAllStringFunc(text, func(tok string) string {
		sub := re.FindStringSubmatch(tok)
		i, err := strconv.Atoi(sub[1])
		if err != nil || i < 0 || i >= len(m.Spans) {
			return tok
		}
		seen[i] = true
		return m.Spans[i]
	})

	var missing []string
	for i, ok := range seen {
		if !ok {
			missing = append(missing, m.Token(i))
		}
	}
	return restored, missing
}

// tokenPattern tolerates the spacing and full-width brackets models
// sometimes introduce around tokens.
func tokenPattern(prefix string) *regexp.Regexp {
	name := regexp.QuoteMeta(strings.TrimPrefix(prefix, "["))
	return regexp.MustCompile(`[\[【]\s*` + name + `(\d+)\s*[\]】]`)
}
