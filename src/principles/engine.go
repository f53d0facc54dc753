// Package principles selects the psychological principle guiding the next
// agent response. Selection is deterministic: stage and profile filters,
// objection targeting, a two-turn rotation window, configured priority and a
// per-call round-robin tie-break.
package principles

import (
	"fmt"
	"sort"
	"sync"

	"github.com/square-key-labs/voicecore-ai/src/analysis"
)

// Principle is one of the six persuasion strategies.
type Principle string

const (
	Reciprocity Principle = "RECIPROCITY"
	Commitment  Principle = "COMMITMENT"
	SocialProof Principle = "SOCIAL_PROOF"
	Authority   Principle = "AUTHORITY"
	Liking      Principle = "LIKING"
	Scarcity    Principle = "SCARCITY"
)

type definition struct {
	stages     map[analysis.Stage]bool
	profiles   map[analysis.Profile]bool
	objections map[analysis.Objection]bool
	priority   int // lower wins
	guidance   string
}

var definitions = map[Principle]definition{
	Reciprocity: {
		stages:     stageSet(analysis.StageAwareness, analysis.StageConsideration),
		profiles:   profileSet(analysis.ProfileEmotional, analysis.ProfileRelationshipSeeker, analysis.ProfileSkeptical),
		objections: objectionSet(analysis.ObjectionPrice, analysis.ObjectionNeed),
		priority:   2,
		guidance:   "Offer something of genuine value first: a useful insight, a free resource, a concrete tip. Give before asking.",
	},
	Commitment: {
		stages:     stageSet(analysis.StageConsideration, analysis.StageDecision),
		profiles:   profileSet(analysis.ProfileAnalytical, analysis.ProfileDecisionMaker, analysis.ProfileRelationshipSeeker),
		objections: objectionSet(analysis.ObjectionTiming),
		priority:   3,
		guidance:   "Secure small agreements that build toward the larger decision. Reference what the customer already agreed to.",
	},
	SocialProof: {
		stages:     stageSet(analysis.StageAwareness, analysis.StageConsideration),
		profiles:   profileSet(analysis.ProfileSkeptical, analysis.ProfileEmotional, analysis.ProfileRelationshipSeeker),
		objections: objectionSet(analysis.ObjectionTrust, analysis.ObjectionQuality),
		priority:   1,
		guidance:   "Cite what similar customers chose and the outcomes they saw. Numbers of adopters beat adjectives.",
	},
	Authority: {
		stages:     stageSet(analysis.StageAwareness, analysis.StageConsideration, analysis.StageDecision),
		profiles:   profileSet(analysis.ProfileAnalytical, analysis.ProfileSkeptical),
		objections: objectionSet(analysis.ObjectionTrust, analysis.ObjectionQuality),
		priority:   4,
		guidance:   "Ground claims in credentials, certifications and verifiable facts. Never overstate.",
	},
	Liking: {
		stages:     stageSet(analysis.StageAwareness),
		profiles:   profileSet(analysis.ProfileEmotional, analysis.ProfileRelationshipSeeker),
		objections: objectionSet(analysis.ObjectionNeed),
		priority:   5,
		guidance:   "Find genuine common ground and mirror the customer's tone. Warmth before pitch.",
	},
	Scarcity: {
		stages:     stageSet(analysis.StageDecision),
		profiles:   profileSet(analysis.ProfileDecisionMaker, analysis.ProfileAnalytical),
		objections: objectionSet(analysis.ObjectionTiming, analysis.ObjectionPrice),
		priority:   6,
		guidance:   "Point at real deadlines or limited availability. Only truthful scarcity; invented urgency destroys trust.",
	},
}

// ordered is the deterministic iteration order for candidate filtering.
var ordered = []Principle{Reciprocity, Commitment, SocialProof, Authority, Liking, Scarcity}

// Guidance returns the prescribed response pattern for a principle, used by
// the prompt builder and per-turn steering.
func Guidance(p Principle) string {
	return definitions[p].guidance
}

// Engine tracks per-call rotation state.
type Engine struct {
	mu       sync.Mutex
	lastUsed []Principle // most recent last, max two entries
	rr       int
}

// NewEngine creates a per-call principle engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Choose picks the principle for the next turn and returns a short reasoning
// string for the call log.
func (e *Engine) Choose(stage analysis.Stage, profile analysis.Profile, objections []analysis.Objection) (Principle, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	candidates := e.filter(stage, profile, objections)
	if len(candidates) == 0 {
		// Rotation emptied the set; reset the recency window and retry once.
		e.lastUsed = nil
		candidates = e.filter(stage, profile, objections)
	}
	if len(candidates) == 0 {
		candidates = append(candidates, ordered...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return definitions[candidates[i]].priority < definitions[candidates[j]].priority
	})

	// Priority ties break by the per-call round-robin counter.
	top := candidates[0]
	topPriority := definitions[top].priority
	var tied []Principle
	for _, c := range candidates {
		if definitions[c].priority == topPriority {
			tied = append(tied, c)
		}
	}
	if len(tied) > 1 {
		top = tied[e.rr%len(tied)]
		e.rr++
	}

	e.lastUsed = append(e.lastUsed, top)
	if len(e.lastUsed) > 2 {
		e.lastUsed = e.lastUsed[len(e.lastUsed)-2:]
	}

	reason := fmt.Sprintf("stage=%s profile=%s objections=%v -> %s", stage, profile, objections, top)
	return top, reason
}

func (e *Engine) filter(stage analysis.Stage, profile analysis.Profile, objections []analysis.Objection) []Principle {
	var out []Principle
	for _, p := range ordered {
		def := definitions[p]
		if def.stages[stage] && def.profiles[profile] {
			out = append(out, p)
		}
	}

	// Objection targeting: when the intersection is non-empty, restrict to it.
	if len(objections) > 0 {
		var targeted []Principle
		for _, p := range out {
			def := definitions[p]
			for _, o := range objections {
				if def.objections[o] {
					targeted = append(targeted, p)
					break
				}
			}
		}
		if len(targeted) > 0 {
			out = targeted
		}
	}

	// Rotation: drop principles used in the last two turns.
	var rotated []Principle
	for _, p := range out {
		if !e.recentlyUsed(p) {
			rotated = append(rotated, p)
		}
	}
	return rotated
}

func (e *Engine) recentlyUsed(p Principle) bool {
	for _, u := range e.lastUsed {
		if u == p {
			return true
		}
	}
	return false
}

func stageSet(stages ...analysis.Stage) map[analysis.Stage]bool {
	m := make(map[analysis.Stage]bool, len(stages))
	for _, s := range stages {
		m[s] = true
	}
	return m
}

func profileSet(profiles ...analysis.Profile) map[analysis.Profile]bool {
	m := make(map[analysis.Profile]bool, len(profiles))
	for _, p := range profiles {
		m[p] = true
	}
	return m
}

func objectionSet(objections ...analysis.Objection) map[analysis.Objection]bool {
	m := make(map[analysis.Objection]bool, len(objections))
	for _, o := range objections {
		m[o] = true
	}
	return m
}
