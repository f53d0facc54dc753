package cache

import (
	"strings"
	"sync"

	"github.com/square-key-labs/voicecore-ai/src/agent"
)

// The master pad document: a large, stable vocabulary text appended to
// every cache payload so that agents with modest knowledge bases still
// clear the model's minimum cacheable size. One pad exists per language;
// each is deterministic, built on first use, and contains no per-call data.

var padVocabulary = []string{
	"account", "agreement", "appointment", "assistance", "availability",
	"benefit", "brochure", "budget", "callback", "campaign", "catalogue",
	"certificate", "clarification", "commitment", "comparison", "concern",
	"confirmation", "consultation", "contract", "conversation", "coverage",
	"customer", "deadline", "decision", "delivery", "demonstration",
	"discount", "document", "eligibility", "enquiry", "enrollment",
	"estimate", "experience", "feedback", "guarantee", "information",
	"installment", "interest", "investment", "invoice", "membership",
	"objection", "obligation", "offer", "payment", "policy", "premium",
	"pricing", "priority", "procedure", "product", "proposal", "purchase",
	"quality", "question", "quotation", "receipt", "recommendation",
	"reference", "refund", "registration", "renewal", "requirement",
	"reservation", "satisfaction", "schedule", "service", "signature",
	"subscription", "support", "timeline", "transaction", "upgrade",
	"validity", "verification", "warranty",
}

// Per-language supplements keep each pad distinct and tokenizer-friendly
// for that language's transcripts. Languages without a supplement share
// the base vocabulary but still get their own header line.
var padSupplements = map[agent.Language][]string{
	agent.Hindi:    {"yojana", "bhugtaan", "samay", "jaankari", "shulk", "suvidha", "prastav", "samjhauta"},
	agent.Hinglish: {"yojana", "payment", "jaankari", "scheme", "shulk", "offer", "samay", "details"},
	agent.Marathi:  {"yojana", "mahiti", "shulk", "karar", "suvidha", "vel", "prastav"},
	agent.Tamil:    {"thittam", "kattanam", "vivaram", "sevai", "oppandham", "neram"},
	agent.Telugu:   {"pathakam", "chellimpu", "vivaralu", "seva", "oppandam", "samayam"},
	agent.Kannada:  {"yojane", "paavati", "maahiti", "seve", "oppanda", "samaya"},
}

var (
	padMu   sync.Mutex
	padDocs = make(map[agent.Language]string)
)

// padFor returns the pad for lang, building and memoizing it on first use.
func padFor(lang agent.Language) string {
	padMu.Lock()
	defer padMu.Unlock()
	if doc, ok := padDocs[lang]; ok {
		return doc
	}
	doc := buildPad(lang)
	padDocs[lang] = doc
	return doc
}

func buildPad(lang agent.Language) string {
	words := padVocabulary
	if extra, ok := padSupplements[lang]; ok {
		words = append(append([]string{}, padVocabulary...), extra...)
	}

	var b strings.Builder
	b.WriteString("[Reference Vocabulary: ")
	b.WriteString(string(lang))
	b.WriteString("]\n")
	// Roughly 180k characters of stable vocabulary lines.
	for round := 0; round < 320; round++ {
		for _, w := range words {
			b.WriteString(w)
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
