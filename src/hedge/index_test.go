package hedge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/analysis"
	"github.com/square-key-labs/voicecore-ai/src/audio"
	"github.com/square-key-labs/voicecore-ai/src/principles"
)

type testEntry struct {
	filename      string
	samples       int
	languages     []string
	principles    []string
	profiles      []string
	effectiveness float64
}

func writeFillerDir(t *testing.T, entries []testEntry) string {
	t.Helper()
	dir := t.TempDir()

	manifest := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		pcm := make([]int16, e.samples)
		for i := range pcm {
			pcm[i] = int16(i % 100)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.filename), audio.PCMToBytes(pcm), 0o644))

		manifest = append(manifest, map[string]interface{}{
			"filename": e.filename,
			"duration": float64(e.samples) / float64(audio.RateInternal),
			"format":   ManifestFormat,
			"metadata": map[string]interface{}{
				"languages":      e.languages,
				"principles":     e.principles,
				"clientProfiles": e.profiles,
				"tone":           "warm",
				"effectiveness": map[string]float64{
					"completionRate":         e.effectiveness,
					"sentimentLift":          e.effectiveness,
					"principleReinforcement": e.effectiveness,
				},
			},
		})
	}

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), data, 0o644))
	return dir
}

func TestLoadIndex(t *testing.T) {
	dir := writeFillerDir(t, []testEntry{
		{"hmm_en.pcm", 1600, []string{"english"}, []string{"SOCIAL_PROOF"}, []string{"SKEPTICAL"}, 0.8},
		{"acha_hi.pcm", 3200, []string{"hinglish", "hindi"}, []string{"LIKING"}, []string{"EMOTIONAL"}, 0.6},
	})

	idx, err := LoadIndex(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.HasLanguage(agent.English))
	assert.True(t, idx.HasLanguage(agent.Hinglish))
	assert.False(t, idx.HasLanguage(agent.Tamil))
}

func TestLoadIndexRejectsBadFormat(t *testing.T) {
	dir := writeFillerDir(t, []testEntry{
		{"x.pcm", 1600, []string{"english"}, nil, nil, 0.5},
	})

	// Rewrite the manifest with a wrong format string.
	var entries []map[string]interface{}
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &entries))
	entries[0]["format"] = "MP3 44.1kHz"
	data, err = json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), data, 0o644))

	_, err = LoadIndex(dir, nil)
	assert.Error(t, err)
}

func TestLoadIndexRejectsDurationMismatch(t *testing.T) {
	dir := writeFillerDir(t, []testEntry{
		{"x.pcm", 1600, []string{"english"}, nil, nil, 0.5},
	})

	var entries []map[string]interface{}
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &entries))
	entries[0]["duration"] = 5.0
	data, err = json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), data, 0o644))

	_, err = LoadIndex(dir, nil)
	assert.Error(t, err)
}

func loadTestIndex(t *testing.T) *Index {
	t.Helper()
	dir := writeFillerDir(t, []testEntry{
		{"en_social.pcm", 1600, []string{"english"}, []string{"SOCIAL_PROOF"}, []string{"SKEPTICAL"}, 0.9},
		{"en_liking.pcm", 1600, []string{"english"}, []string{"LIKING"}, []string{"EMOTIONAL"}, 0.7},
		{"hing_social_a.pcm", 1600, []string{"hinglish"}, []string{"SOCIAL_PROOF"}, []string{"SKEPTICAL"}, 0.8},
		{"hing_social_b.pcm", 1600, []string{"hinglish"}, []string{"SOCIAL_PROOF"}, []string{"EMOTIONAL"}, 0.8},
	})
	idx, err := LoadIndex(dir, nil)
	require.NoError(t, err)
	return idx
}

func TestSelectMatchesLanguageAndPrinciple(t *testing.T) {
	idx := loadTestIndex(t)

	f := idx.Select(agent.Hinglish, principles.SocialProof, analysis.ProfileSkeptical, nil)
	require.NotNil(t, f)
	assert.Equal(t, "hing_social_a.pcm", f.Filename)
}

func TestSelectFallsBackToEnglish(t *testing.T) {
	idx := loadTestIndex(t)

	f := idx.Select(agent.Tamil, principles.Liking, analysis.ProfileEmotional, nil)
	require.NotNil(t, f)
	assert.Equal(t, "en_liking.pcm", f.Filename)
}

func TestSelectNilWhenNoLanguageAndNoEnglish(t *testing.T) {
	dir := writeFillerDir(t, []testEntry{
		{"hi_only.pcm", 1600, []string{"hindi"}, []string{"LIKING"}, nil, 0.5},
	})
	idx, err := LoadIndex(dir, nil)
	require.NoError(t, err)

	assert.Nil(t, idx.Select(agent.Tamil, principles.Liking, analysis.ProfileEmotional, nil))
}

func TestSelectPrincipleMissSoftens(t *testing.T) {
	idx := loadTestIndex(t)

	// No SCARCITY filler exists; the principle filter is skipped rather than
	// returning nil.
	f := idx.Select(agent.English, principles.Scarcity, analysis.ProfileSkeptical, nil)
	require.NotNil(t, f)
}

func TestSelectExcludesRecent(t *testing.T) {
	idx := loadTestIndex(t)

	f := idx.Select(agent.Hinglish, principles.SocialProof, analysis.ProfileDecisionMaker, []string{"hing_social_b.pcm"})
	require.NotNil(t, f)
	assert.Equal(t, "hing_social_a.pcm", f.Filename)
}

func TestSelectRoundRobinOnTies(t *testing.T) {
	idx := loadTestIndex(t)

	// Both Hinglish SOCIAL_PROOF fillers share effectiveness 0.8; repeated
	// selection with no variety exclusion alternates between them.
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		f := idx.Select(agent.Hinglish, principles.SocialProof, analysis.ProfileDecisionMaker, nil)
		require.NotNil(t, f)
		seen[f.Filename] = true
	}
	assert.Len(t, seen, 2)
}
