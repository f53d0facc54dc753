// Package analysis classifies lightweight conversation signals from
// accumulating turn text: sales-funnel stage, client decision profile,
// raised objections, conversation language and sentiment. Everything is
// local keyword and script matching; no API calls, well under the 100 ms
// budget per turn.
package analysis

import (
	"strings"
	"sync"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/store"
)

// Stage is the position in the sales funnel.
type Stage string

const (
	StageAwareness     Stage = "AWARENESS"
	StageConsideration Stage = "CONSIDERATION"
	StageDecision      Stage = "DECISION"
)

// Profile classifies the counterparty's decision style.
type Profile string

const (
	ProfileAnalytical         Profile = "ANALYTICAL"
	ProfileEmotional          Profile = "EMOTIONAL"
	ProfileSkeptical          Profile = "SKEPTICAL"
	ProfileDecisionMaker      Profile = "DECISION_MAKER"
	ProfileRelationshipSeeker Profile = "RELATIONSHIP_SEEKER"
)

// Objection is a recognized sales objection category.
type Objection string

const (
	ObjectionPrice   Objection = "PRICE"
	ObjectionQuality Objection = "QUALITY"
	ObjectionTrust   Objection = "TRUST"
	ObjectionTiming  Objection = "TIMING"
	ObjectionNeed    Objection = "NEED"
)

// Result is one analysis pass over the latest utterance plus history.
type Result struct {
	Stage      Stage
	Profile    Profile
	Objections []Objection
	Language   agent.Language
	Sentiment  float64
}

// Analyzer accumulates sticky state across turns of one call. Language and
// profile lock in after the first confident determination; profile may still
// move later, but only past a hysteresis margin.
type Analyzer struct {
	mu sync.Mutex

	agentLanguage agent.Language

	language       agent.Language
	languageLocked bool

	profile     Profile
	profileHits int
}

// profileSwitchHysteresis is how many keyword hits a competing profile needs
// beyond the locked one before the analyzer switches.
const profileSwitchHysteresis = 2

// NewAnalyzer creates an analyzer for one call.
func NewAnalyzer(agentLanguage agent.Language) *Analyzer {
	return &Analyzer{
		agentLanguage: agentLanguage,
		language:      agentLanguage,
		profile:       ProfileRelationshipSeeker,
	}
}

var decisionKeywords = []string{
	"buy", "purchase", "schedule", "sign up", "signup", "book", "enroll",
	"payment", "let's do it", "kharidna", "le lunga",
}

var considerationKeywords = []string{
	"compare", "difference", "versus", "vs", "feature", "how does", "what about",
	"option", "alternative", "better than", "pricing", "plans",
}

var profileKeywords = map[Profile][]string{
	ProfileAnalytical: {
		"roi", "percent", "number", "data", "statistics", "metric", "cost per",
		"interest rate", "figure", "calculate",
	},
	ProfileEmotional: {
		"feel", "feeling", "worried", "excited", "love", "hate", "scared",
		"stress", "happy", "comfortable",
	},
	ProfileSkeptical: {
		"guarantee", "scam", "fraud", "proof", "really work", "too good",
		"don't believe", "doubt", "fake",
	},
	ProfileDecisionMaker: {
		"send me", "set it up", "get started", "right away", "asap",
		"book it", "schedule it", "just do",
	},
}

var objectionKeywords = map[Objection][]string{
	ObjectionPrice:   {"expensive", "costly", "afford", "cheap", "price", "budget", "mehenga"},
	ObjectionQuality: {"quality", "broken", "defect", "reliable", "durable", "reviews say"},
	ObjectionTrust:   {"trust", "scam", "fraud", "legit", "genuine", "license"},
	ObjectionTiming:  {"later", "next month", "not now", "busy", "call back", "some other time", "baad mein"},
	ObjectionNeed:    {"don't need", "no need", "already have", "not interested", "why would i", "zaroorat nahi"},
}

var positiveWords = []string{
	"great", "good", "yes", "sure", "perfect", "thanks", "interested",
	"helpful", "nice", "awesome", "badhiya", "accha",
}

var negativeWords = []string{
	"no", "not", "bad", "waste", "annoying", "stop", "never",
	"expensive", "problem", "worst", "bekar", "nahi",
}

var intensifiers = []string{"very", "really", "extremely", "so", "totally", "bahut"}

// Analyze classifies the latest user utterance in the context of the turn
// history so far.
func (a *Analyzer) Analyze(utterance string, history []store.Turn) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	lower := strings.ToLower(utterance)

	res := Result{
		Stage:      a.stage(lower, len(history)),
		Profile:    a.classifyProfile(lower),
		Objections: detectObjections(lower),
		Language:   a.detectLanguage(utterance),
		Sentiment:  scoreSentiment(lower),
	}
	return res
}

// Language returns the sticky detected language.
func (a *Analyzer) Language() agent.Language {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.language
}

func (a *Analyzer) stage(lower string, turnCount int) Stage {
	for _, kw := range decisionKeywords {
		if strings.Contains(lower, kw) {
			return StageDecision
		}
	}
	for _, kw := range considerationKeywords {
		if strings.Contains(lower, kw) {
			return StageConsideration
		}
	}
	if turnCount < 3 {
		return StageAwareness
	}
	return StageConsideration
}

func (a *Analyzer) classifyProfile(lower string) Profile {
	best := ProfileRelationshipSeeker
	bestHits := 0
	// Fixed order so equal hit counts resolve the same way on every run.
	for _, profile := range []Profile{ProfileAnalytical, ProfileEmotional, ProfileSkeptical, ProfileDecisionMaker} {
		hits := 0
		for _, kw := range profileKeywords[profile] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = profile, hits
		}
	}

	if bestHits == 0 {
		return a.profile
	}

	// First confident hit locks the profile; later turns need to clear the
	// hysteresis margin to move it.
	if a.profileHits == 0 || best == a.profile {
		a.profile = best
		a.profileHits = bestHits
		return a.profile
	}
	if bestHits >= a.profileHits+profileSwitchHysteresis {
		a.profile = best
		a.profileHits = bestHits
	}
	return a.profile
}

func detectObjections(lower string) []Objection {
	var out []Objection
	for _, obj := range []Objection{ObjectionPrice, ObjectionQuality, ObjectionTrust, ObjectionTiming, ObjectionNeed} {
		for _, kw := range objectionKeywords[obj] {
			if strings.Contains(lower, kw) {
				out = append(out, obj)
				break
			}
		}
	}
	return out
}

func scoreSentiment(lower string) float64 {
	words := strings.Fields(lower)
	score := 0.5
	weight := 0.08
	prevIntensifier := false
	for _, w := range words {
		mult := 1.0
		if prevIntensifier {
			mult = 1.5
		}
		switch {
		case contains(positiveWords, w):
			score += weight * mult
		case contains(negativeWords, w):
			score -= weight * mult
		}
		prevIntensifier = contains(intensifiers, w)
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func contains(list []string, w string) bool {
	for _, s := range list {
		if s == w {
			return true
		}
	}
	return false
}
