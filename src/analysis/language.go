package analysis

import (
	"strings"
	"unicode"

	"github.com/square-key-labs/voicecore-ai/src/agent"
)

// Romanized Hindi tokens used for the Hinglish mixed-token heuristic: Latin
// script text that leans on these is Hinglish, not English.
var hinglishTokens = []string{
	"hai", "nahi", "kya", "aap", "haan", "theek", "acha", "accha", "bhai",
	"ji", "kaise", "karna", "chahiye", "bata", "matlab", "paisa", "kitna",
	"mujhe", "hum", "tum", "karo", "dena", "lena",
}

// detectLanguage determines the conversation language from the utterance
// script. The decision is sticky: once a confident determination is made it
// is cached for the rest of the call (the first few seconds of transcript
// decide, later turns never re-run detection).
func (a *Analyzer) detectLanguage(utterance string) agent.Language {
	if a.languageLocked {
		return a.language
	}

	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return a.language
	}

	if lang, confident := classifyScript(trimmed); confident {
		a.language = lang
		a.languageLocked = true
	}
	return a.language
}

func classifyScript(text string) (agent.Language, bool) {
	var devanagari, tamil, telugu, kannada, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Devanagari, r):
			devanagari++
		case unicode.Is(unicode.Tamil, r):
			tamil++
		case unicode.Is(unicode.Telugu, r):
			telugu++
		case unicode.Is(unicode.Kannada, r):
			kannada++
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			latin++
		}
	}

	total := devanagari + tamil + telugu + kannada + latin
	if total < 8 {
		// Too little text to make a sticky decision.
		return agent.English, false
	}

	switch {
	case tamil*2 > total:
		return agent.Tamil, true
	case telugu*2 > total:
		return agent.Telugu, true
	case kannada*2 > total:
		return agent.Kannada, true
	case devanagari*2 > total:
		// Devanagari covers both Hindi and Marathi; Hindi is the more common
		// default and prompt-side salutations treat them identically.
		return agent.Hindi, true
	}

	// Latin-dominant text: Hinglish when romanized Hindi tokens are mixed in.
	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	hits := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?")
		for _, tok := range hinglishTokens {
			if w == tok {
				hits++
				break
			}
		}
	}
	if hits >= 2 || (len(words) > 0 && hits*4 >= len(words)) {
		return agent.Hinglish, true
	}
	return agent.English, true
}
