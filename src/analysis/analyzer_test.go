package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/store"
)

func TestStageDetection(t *testing.T) {
	a := NewAnalyzer(agent.English)

	res := a.Analyze("I want to buy this today", nil)
	assert.Equal(t, StageDecision, res.Stage)

	res = a.Analyze("how does this compare with the other plans", nil)
	assert.Equal(t, StageConsideration, res.Stage)

	res = a.Analyze("hello, who is this", nil)
	assert.Equal(t, StageAwareness, res.Stage)

	// Without keywords, stage depends on how deep the conversation is.
	history := make([]store.Turn, 4)
	res = a.Analyze("hmm okay", history)
	assert.Equal(t, StageConsideration, res.Stage)
}

func TestProfileDetectionAndStickiness(t *testing.T) {
	a := NewAnalyzer(agent.English)

	res := a.Analyze("what is the roi and the interest rate, show me the data", nil)
	assert.Equal(t, ProfileAnalytical, res.Profile)

	// A single competing hit does not clear the hysteresis margin.
	res = a.Analyze("i feel okay about it", nil)
	assert.Equal(t, ProfileAnalytical, res.Profile)

	// A strong burst of competing evidence does.
	res = a.Analyze("i feel worried and scared, this whole thing gives me stress, not happy", nil)
	assert.Equal(t, ProfileEmotional, res.Profile)
}

func TestProfileDefault(t *testing.T) {
	a := NewAnalyzer(agent.English)
	res := a.Analyze("hello there", nil)
	assert.Equal(t, ProfileRelationshipSeeker, res.Profile)
}

func TestProfileTieIsDeterministic(t *testing.T) {
	// One analytical hit and one emotional hit: the fixed evaluation order
	// resolves the tie the same way on every run.
	for i := 0; i < 20; i++ {
		a := NewAnalyzer(agent.English)
		res := a.Analyze("the data makes me worried", nil)
		assert.Equal(t, ProfileAnalytical, res.Profile)
	}
}

func TestObjectionDetection(t *testing.T) {
	a := NewAnalyzer(agent.English)
	res := a.Analyze("this is too expensive and honestly I don't need it right now", nil)
	assert.Contains(t, res.Objections, ObjectionPrice)
	assert.Contains(t, res.Objections, ObjectionNeed)
	assert.NotContains(t, res.Objections, ObjectionQuality)
}

func TestSentimentScoring(t *testing.T) {
	a := NewAnalyzer(agent.English)

	pos := a.Analyze("great, this is really helpful, thanks", nil)
	assert.Greater(t, pos.Sentiment, 0.5)

	neg := a.Analyze("no, this is a waste, stop calling, worst", nil)
	assert.Less(t, neg.Sentiment, 0.5)

	neutral := a.Analyze("I am at the office", nil)
	assert.InDelta(t, 0.5, neutral.Sentiment, 0.001)
}

func TestSentimentClamped(t *testing.T) {
	a := NewAnalyzer(agent.English)
	res := a.Analyze("no no no no bad bad bad waste waste worst worst never never stop", nil)
	assert.GreaterOrEqual(t, res.Sentiment, 0.0)
	assert.LessOrEqual(t, res.Sentiment, 1.0)
}

func TestLanguageDetectionDevanagari(t *testing.T) {
	a := NewAnalyzer(agent.English)
	res := a.Analyze("नमस्ते मुझे इसके बारे में और जानकारी चाहिए", nil)
	assert.Equal(t, agent.Hindi, res.Language)
}

func TestLanguageDetectionHinglish(t *testing.T) {
	a := NewAnalyzer(agent.English)
	res := a.Analyze("haan bhai mujhe thoda aur batao iske baare mein", nil)
	assert.Equal(t, agent.Hinglish, res.Language)
}

func TestLanguageSticky(t *testing.T) {
	a := NewAnalyzer(agent.English)

	res := a.Analyze("haan bhai mujhe thoda aur batao iske baare mein", nil)
	assert.Equal(t, agent.Hinglish, res.Language)

	// Later short English turns do not flip a confident detection.
	res = a.Analyze("ok", nil)
	assert.Equal(t, agent.Hinglish, res.Language)
	assert.Equal(t, agent.Hinglish, a.Language())
}

func TestLanguageShortUtteranceNotConfident(t *testing.T) {
	a := NewAnalyzer(agent.Tamil)
	// Under the confidence minimum the agent's configured language holds.
	res := a.Analyze("ok fine", nil)
	assert.Equal(t, agent.Tamil, res.Language)
}
