// Package agent defines the immutable per-call agent configuration: who the
// agent is, how it speaks, what it knows, and the call policy limits.
package agent

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Language is the conversation language of an agent.
type Language string

const (
	English  Language = "english"
	Hindi    Language = "hindi"
	Marathi  Language = "marathi"
	Hinglish Language = "hinglish"
	Tamil    Language = "tamil"
	Telugu   Language = "telugu"
	Kannada  Language = "kannada"
)

// Tone is the overall voice tone.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneEnergetic    Tone = "energetic"
	ToneCalm         Tone = "calm"
	ToneEmpathetic   Tone = "empathetic"
)

// Clarity steers articulation.
type Clarity string

const (
	ClarityCrisp   Clarity = "crisp"
	ClarityNatural Clarity = "natural"
	ClarityRelaxed Clarity = "relaxed"
)

// Sensitivity grades how easily the user can barge in on the agent.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// ResponseLength bounds agent verbosity.
type ResponseLength string

const (
	ResponseShort  ResponseLength = "short"
	ResponseMedium ResponseLength = "medium"
	ResponseLong   ResponseLength = "long"
)

// FillerFrequency grades how often conversational fillers are allowed.
type FillerFrequency string

const (
	FillerNone   FillerFrequency = "none"
	FillerLow    FillerFrequency = "low"
	FillerMedium FillerFrequency = "medium"
	FillerHigh   FillerFrequency = "high"
)

// NoiseProfile selects the acoustic-environment steering clause in the
// system instruction.
type NoiseProfile string

const (
	NoiseNone        NoiseProfile = "none"
	NoiseQuietOffice NoiseProfile = "quiet-office"
	NoiseCallCenter  NoiseProfile = "call-center"
	NoiseStreet      NoiseProfile = "street"
	NoiseCafe        NoiseProfile = "cafe"
)

// KnowledgeDoc is one ordered knowledge-base document.
type KnowledgeDoc struct {
	Title string `yaml:"title" validate:"required"`
	Text  string `yaml:"text" validate:"required"`
}

// VoiceCharacteristics configures prosody and delivery.
type VoiceCharacteristics struct {
	Tone           Tone    `yaml:"tone" validate:"oneof=professional friendly energetic calm empathetic"`
	EmotionLevel   float64 `yaml:"emotion_level"`  // clamped to [0,1]
	Responsiveness float64 `yaml:"responsiveness"` // clamped to [0,1], 0.5 when omitted
	Pitch          float64 `yaml:"pitch"`          // clamped to [0.75,1.25]
	Speed          float64 `yaml:"speed"`          // clamped to [0.75,1.25]
	PauseMs        int     `yaml:"pause_ms" validate:"min=0,max=2000"`
	Clarity        Clarity `yaml:"clarity" validate:"oneof=crisp natural relaxed"`
}

// SpeechPolicy configures turn-taking behavior.
type SpeechPolicy struct {
	InterruptionSensitivity Sensitivity     `yaml:"interruption_sensitivity" validate:"oneof=low medium high"`
	ResponseLength          ResponseLength  `yaml:"response_length" validate:"oneof=short medium long"`
	QuestionFrequency       int             `yaml:"question_frequency" validate:"min=0,max=100"`
	FillerFrequency         FillerFrequency `yaml:"filler_frequency" validate:"oneof=none low medium high"`
}

// CallPolicy bounds call duration and terminal silence.
type CallPolicy struct {
	MaxDurationSec         int     `yaml:"max_duration_sec" validate:"min=10"`
	EndOnSilenceSec        int     `yaml:"end_on_silence_sec" validate:"min=1"`
	SilenceEnergyThreshold float64 `yaml:"silence_energy_threshold"`
}

// Config is the full agent configuration. It is read once at call start and
// immutable for the lifetime of the call; supervisors receive it by value
// copy so shared state never leaks between calls.
type Config struct {
	ID             string   `yaml:"id" validate:"required"`
	Name           string   `yaml:"name" validate:"required"`
	Role           string   `yaml:"role" validate:"required"`
	Persona        string   `yaml:"persona"`
	TargetAudience string   `yaml:"target_audience"`
	Industry       string   `yaml:"industry"`
	Language       Language `yaml:"language" validate:"oneof=english hindi marathi hinglish tamil telugu kannada"`
	Voice          string   `yaml:"voice" validate:"required"`
	StarterPlan    bool     `yaml:"starter_plan"`

	Characteristics VoiceCharacteristics `yaml:"characteristics"`
	Speech          SpeechPolicy         `yaml:"speech"`
	Noise           NoiseProfile         `yaml:"noise_profile" validate:"omitempty,oneof=none quiet-office call-center street cafe"`
	Knowledge       []KnowledgeDoc       `yaml:"knowledge"`
	Call            CallPolicy           `yaml:"call"`
}

var validate = validator.New()

// Load reads, validates and normalizes an agent configuration from a YAML
// file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agent: parse config: %w", err)
	}
	cfg.Normalize()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("agent: invalid config %q: %w", cfg.ID, err)
	}
	return &cfg, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalize clamps numeric fields into their documented ranges and fills
// defaults for omitted policy values. Starter-plan agents have emotion and
// responsiveness pinned at 0.5 regardless of input.
func (c *Config) Normalize() {
	c.Characteristics.EmotionLevel = clamp(c.Characteristics.EmotionLevel, 0, 1)
	if c.Characteristics.Responsiveness == 0 {
		c.Characteristics.Responsiveness = 0.5
	}
	c.Characteristics.Responsiveness = clamp(c.Characteristics.Responsiveness, 0, 1)
	if c.Characteristics.Pitch == 0 {
		c.Characteristics.Pitch = 1.0
	}
	if c.Characteristics.Speed == 0 {
		c.Characteristics.Speed = 1.0
	}
	c.Characteristics.Pitch = clamp(c.Characteristics.Pitch, 0.75, 1.25)
	c.Characteristics.Speed = clamp(c.Characteristics.Speed, 0.75, 1.25)

	if c.StarterPlan {
		c.Characteristics.EmotionLevel = 0.5
		c.Characteristics.Responsiveness = 0.5
	}

	if c.Language == "" {
		c.Language = English
	}
	if c.Characteristics.Tone == "" {
		c.Characteristics.Tone = ToneProfessional
	}
	if c.Characteristics.Clarity == "" {
		c.Characteristics.Clarity = ClarityNatural
	}
	if c.Speech.InterruptionSensitivity == "" {
		c.Speech.InterruptionSensitivity = SensitivityMedium
	}
	if c.Speech.ResponseLength == "" {
		c.Speech.ResponseLength = ResponseMedium
	}
	if c.Speech.FillerFrequency == "" {
		c.Speech.FillerFrequency = FillerMedium
	}
	if c.Noise == "" {
		c.Noise = NoiseNone
	}
	if c.Call.MaxDurationSec == 0 {
		c.Call.MaxDurationSec = 600
	}
	if c.Call.EndOnSilenceSec == 0 {
		c.Call.EndOnSilenceSec = 15
	}
	if c.Call.SilenceEnergyThreshold == 0 {
		c.Call.SilenceEnergyThreshold = 20
	}
}

// InterruptThreshold maps the configured sensitivity to an RMS threshold on
// the absolute sample scale. Higher sensitivity means a lower bar to barge
// in.
func (c *Config) InterruptThreshold() float64 {
	base := c.Call.SilenceEnergyThreshold
	switch c.Speech.InterruptionSensitivity {
	case SensitivityHigh:
		return base
	case SensitivityLow:
		return base * 4
	default:
		return base * 2
	}
}
