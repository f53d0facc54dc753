package hedge

import (
	"sync/atomic"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/analysis"
	"github.com/square-key-labs/voicecore-ai/src/principles"
)

// Index is the startup-built filler index. It is read-only after LoadIndex
// returns and shared by every call; only the round-robin tie-break counter
// mutates, atomically.
type Index struct {
	fillers []*Filler

	byLanguage  map[agent.Language][]*Filler
	byPrinciple map[principles.Principle][]*Filler
	byProfile   map[analysis.Profile][]*Filler

	rr uint64
}

func newIndex() *Index {
	return &Index{
		byLanguage:  make(map[agent.Language][]*Filler),
		byPrinciple: make(map[principles.Principle][]*Filler),
		byProfile:   make(map[analysis.Profile][]*Filler),
	}
}

func (x *Index) add(f *Filler) {
	x.fillers = append(x.fillers, f)
	for _, l := range f.Languages {
		x.byLanguage[l] = append(x.byLanguage[l], f)
	}
	for _, p := range f.Principles {
		x.byPrinciple[p] = append(x.byPrinciple[p], f)
	}
	for _, p := range f.Profiles {
		x.byProfile[p] = append(x.byProfile[p], f)
	}
}

// Len returns the number of indexed fillers.
func (x *Index) Len() int {
	return len(x.fillers)
}

// HasLanguage reports whether any filler is tagged with lang.
func (x *Index) HasLanguage(lang agent.Language) bool {
	return len(x.byLanguage[lang]) > 0
}

// Select picks a filler by the five-step narrowing sequence. Each step that
// would empty the candidate set is skipped instead (graceful degradation):
//
//  1. language (critical; falls back to English-tagged fillers)
//  2. principle (strong)
//  3. profile (soft)
//  4. variety: exclude filenames in recent
//  5. highest effectiveness, round-robin on ties
//
// Returns nil only when the index has no filler for the language and none
// for English.
func (x *Index) Select(lang agent.Language, principle principles.Principle, profile analysis.Profile, recent []string) *Filler {
	candidates := x.byLanguage[lang]
	if len(candidates) == 0 {
		candidates = x.byLanguage[agent.English]
	}
	if len(candidates) == 0 {
		return nil
	}

	if narrowed := filterByPrinciple(candidates, principle); len(narrowed) > 0 {
		candidates = narrowed
	}
	if narrowed := filterByProfile(candidates, profile); len(narrowed) > 0 {
		candidates = narrowed
	}
	if narrowed := excludeRecent(candidates, recent); len(narrowed) > 0 {
		candidates = narrowed
	}

	best := candidates[0].Effectiveness
	for _, f := range candidates[1:] {
		if f.Effectiveness > best {
			best = f.Effectiveness
		}
	}
	var top []*Filler
	for _, f := range candidates {
		if f.Effectiveness == best {
			top = append(top, f)
		}
	}
	if len(top) == 1 {
		return top[0]
	}
	n := atomic.AddUint64(&x.rr, 1)
	return top[int(n-1)%len(top)]
}

func filterByPrinciple(in []*Filler, p principles.Principle) []*Filler {
	var out []*Filler
	for _, f := range in {
		for _, fp := range f.Principles {
			if fp == p {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func filterByProfile(in []*Filler, p analysis.Profile) []*Filler {
	var out []*Filler
	for _, f := range in {
		for _, fp := range f.Profiles {
			if fp == p {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func excludeRecent(in []*Filler, recent []string) []*Filler {
	if len(recent) == 0 {
		return in
	}
	var out []*Filler
	for _, f := range in {
		used := false
		for _, r := range recent {
			if f.Filename == r {
				used = true
				break
			}
		}
		if !used {
			out = append(out, f)
		}
	}
	return out
}
