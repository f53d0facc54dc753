// Package hedge owns the pre-recorded filler library: a JSON manifest plus
// raw PCM assets loaded at startup, indexed by language, principle and
// client profile, and a five-step selector that masks model thinking
// latency without ever leaving a silent gap.
package hedge

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/analysis"
	"github.com/square-key-labs/voicecore-ai/src/audio"
	"github.com/square-key-labs/voicecore-ai/src/logger"
	"github.com/square-key-labs/voicecore-ai/src/principles"
)

// ManifestFormat is the only accepted asset format. The manifest is the
// source of truth for tags; filenames are descriptive for humans and are
// never parsed.
const ManifestFormat = "PCM 16-bit 16kHz mono"

// ManifestName is the index file expected in the filler directory.
const ManifestName = "manifest.json"

type manifestEntry struct {
	Filename string  `json:"filename"`
	Duration float64 `json:"duration"`
	Format   string  `json:"format"`
	Metadata struct {
		Languages      []string `json:"languages"`
		Principles     []string `json:"principles"`
		ClientProfiles []string `json:"clientProfiles"`
		Tone           string   `json:"tone"`
		Effectiveness  struct {
			CompletionRate         float64 `json:"completionRate"`
			SentimentLift          float64 `json:"sentimentLift"`
			PrincipleReinforcement float64 `json:"principleReinforcement"`
		} `json:"effectiveness"`
	} `json:"metadata"`
}

// Filler is one immutable pre-loaded PCM asset.
type Filler struct {
	Filename string
	PCM      []int16 // 16-bit 16 kHz mono
	Duration float64 // seconds

	Languages     []agent.Language
	Principles    []principles.Principle
	Profiles      []analysis.Profile
	Tone          string
	Effectiveness float64 // mean of the three manifest scores, in [0,1]
}

// durationTolerance is one 20 ms frame at 16 kHz; manifest durations that
// disagree with the PCM length by more than this fail the load.
const durationTolerance = 0.020

// LoadIndex reads the manifest and all referenced PCM files from dir.
func LoadIndex(dir string, log *logger.Logger) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("hedge: read manifest: %w", err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("hedge: parse manifest: %w", err)
	}

	idx := newIndex()
	for _, e := range entries {
		if e.Format != ManifestFormat {
			return nil, fmt.Errorf("hedge: filler %q: unsupported format %q", e.Filename, e.Format)
		}

		raw, err := os.ReadFile(filepath.Join(dir, e.Filename))
		if err != nil {
			return nil, fmt.Errorf("hedge: read filler %q: %w", e.Filename, err)
		}
		pcm, err := audio.BytesToPCM(raw)
		if err != nil {
			return nil, fmt.Errorf("hedge: filler %q: %w", e.Filename, err)
		}

		actual := float64(len(pcm)) / float64(audio.RateInternal)
		if math.Abs(actual-e.Duration) > durationTolerance {
			return nil, fmt.Errorf("hedge: filler %q: manifest duration %.3fs but PCM is %.3fs",
				e.Filename, e.Duration, actual)
		}

		f := &Filler{
			Filename: e.Filename,
			PCM:      pcm,
			Duration: actual,
			Tone:     e.Metadata.Tone,
			Effectiveness: (e.Metadata.Effectiveness.CompletionRate +
				e.Metadata.Effectiveness.SentimentLift +
				e.Metadata.Effectiveness.PrincipleReinforcement) / 3,
		}
		for _, l := range e.Metadata.Languages {
			f.Languages = append(f.Languages, agent.Language(l))
		}
		for _, p := range e.Metadata.Principles {
			f.Principles = append(f.Principles, principles.Principle(p))
		}
		for _, p := range e.Metadata.ClientProfiles {
			f.Profiles = append(f.Profiles, analysis.Profile(p))
		}

		idx.add(f)
	}

	if log != nil {
		log.Info("loaded %d fillers from %s", idx.Len(), dir)
	}
	return idx, nil
}
