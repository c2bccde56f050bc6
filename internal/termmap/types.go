package termmap

// TermMap maps source terms to their fixed translation in the target language.
type TermMap map[string]string

// MatchResult holds terms that matched against input texts.
type MatchResult struct {
	Matched TermMap
}
