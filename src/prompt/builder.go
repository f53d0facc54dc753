// Package prompt assembles the single system instruction for a call. The
// instruction is built exactly once, before the model session connects, and
// is never updated mid-session.
package prompt

import (
	"fmt"
	"strings"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/analysis"
	"github.com/square-key-labs/voicecore-ai/src/logger"
	"github.com/square-key-labs/voicecore-ai/src/principles"
)

// MaxInstructionChars is the hard ceiling on the assembled instruction. The
// knowledge section is truncated so the full payload stays under it; the
// model session rejects anything larger.
const MaxInstructionChars = 20000

// Lead identifies the person being called.
type Lead struct {
	FirstName string
	LastName  string
}

var noiseClauses = map[agent.NoiseProfile]string{
	agent.NoiseQuietOffice: "Adapt clarity as if speaking in a quiet office: natural volume, no over-articulation.",
	agent.NoiseCallCenter:  "Assume moderate background chatter: keep sentences short and articulate clearly.",
	agent.NoiseStreet:      "Assume noticeable street noise: speak up slightly, repeat key numbers once.",
	agent.NoiseCafe:        "Assume light cafe ambience: relaxed pacing, normal clarity.",
}

// Salutation returns how the agent should address the lead. Hindi, Hinglish
// and Marathi callers get "<FirstName> Ji"; other languages get
// "Mr./Ms. <LastName>", falling back to the bare first name when no last
// name is known.
func Salutation(lang agent.Language, lead Lead) string {
	first := strings.TrimSpace(lead.FirstName)
	last := strings.TrimSpace(lead.LastName)

	switch lang {
	case agent.Hindi, agent.Hinglish, agent.Marathi:
		if first != "" {
			return first + " Ji"
		}
		return "Ji"
	default:
		if last != "" {
			return "Mr./Ms. " + last
		}
		return first
	}
}

// Build assembles the system instruction from the agent configuration, the
// lead, and the initial principle and stage. Principle re-selection happens
// per turn but never changes the instruction.
func Build(cfg *agent.Config, lead Lead, initial principles.Principle, stage analysis.Stage, log *logger.Logger) string {
	var b strings.Builder

	// 1. Core Identity
	b.WriteString("## Core Identity\n")
	fmt.Fprintf(&b, "You are %s, a %s.", cfg.Name, cfg.Role)
	if cfg.Persona != "" {
		fmt.Fprintf(&b, " %s", cfg.Persona)
	}
	if cfg.TargetAudience != "" {
		fmt.Fprintf(&b, " You speak with %s.", cfg.TargetAudience)
	}
	if cfg.Industry != "" {
		fmt.Fprintf(&b, " Industry: %s.", cfg.Industry)
	}
	b.WriteString("\n\n")

	// 2. Voice & Personality
	b.WriteString("## Voice & Personality\n")
	fmt.Fprintf(&b,
		"Tone: %s. Emotional expressiveness: %.1f of 1. Responsiveness: %.1f of 1. Speaking speed: %.2fx. Pitch: %.2fx. Pause about %d ms between thoughts. Articulation: %s.\n\n",
		cfg.Characteristics.Tone, cfg.Characteristics.EmotionLevel, cfg.Characteristics.Responsiveness,
		cfg.Characteristics.Speed, cfg.Characteristics.Pitch, cfg.Characteristics.PauseMs, cfg.Characteristics.Clarity)

	// Sections after the knowledge base are sized first so the knowledge
	// budget can absorb whatever room is left.
	tail := buildTail(cfg, lead, initial, stage)

	// 3. Knowledge Base
	b.WriteString("## Knowledge Base\n")
	budget := MaxInstructionChars - b.Len() - len(tail)
	writeKnowledge(&b, cfg.Knowledge, budget, log)
	b.WriteString(tail)

	out := b.String()
	if len(out) > MaxInstructionChars {
		// The session rejects oversize payloads outright.
		out = out[:MaxInstructionChars]
	}
	return out
}

func writeKnowledge(b *strings.Builder, docs []agent.KnowledgeDoc, budget int, log *logger.Logger) {
	used := 0
	for i, doc := range docs {
		entry := fmt.Sprintf("%d. %s\n%s\n\n", i+1, doc.Title, doc.Text)
		if used+len(entry) > budget {
			remaining := budget - used
			if remaining > len(doc.Title)+16 {
				entry = entry[:remaining]
				b.WriteString(entry)
			}
			if log != nil {
				log.Warn("knowledge truncated to fit %d char instruction budget (%d docs, cut at doc %d)",
					MaxInstructionChars, len(docs), i+1)
			}
			return
		}
		b.WriteString(entry)
		used += len(entry)
	}
}

func buildTail(cfg *agent.Config, lead Lead, initial principles.Principle, stage analysis.Stage) string {
	var b strings.Builder

	// 4. Principle Guidance
	b.WriteString("## Principle Guidance\n")
	fmt.Fprintf(&b, "%s\n\n", principles.Guidance(initial))

	// 5. Stage Guidance
	b.WriteString("## Stage Guidance\n")
	switch stage {
	case analysis.StageDecision:
		b.WriteString("The customer is close to a decision: remove friction, confirm specifics, and guide to a clear next step.\n\n")
	case analysis.StageConsideration:
		b.WriteString("The customer is weighing options: contrast honestly, answer comparisons directly, avoid pressure.\n\n")
	default:
		b.WriteString("The customer is just becoming aware: establish relevance and trust before any pitch.\n\n")
	}

	// 6. Objection Handling
	b.WriteString("## Objection Handling\n")
	b.WriteString("Acknowledge every objection before answering it. Address price with value, trust with proof, timing with low-commitment next steps. Never argue.\n\n")

	// 7. Language & Culture
	b.WriteString("## Language & Culture\n")
	fmt.Fprintf(&b, "Speak %s.", cfg.Language)
	if sal := Salutation(cfg.Language, lead); sal != "" {
		fmt.Fprintf(&b, " Address the customer as %q.", sal)
	}
	switch cfg.Language {
	case agent.Hinglish:
		b.WriteString(" Code-switch naturally between Hindi and English the way the customer does.")
	case agent.English:
		b.WriteString(" Stay in English even if the customer mixes languages, unless they clearly switch.")
	default:
		b.WriteString(" Mirror the customer's level of formality.")
	}
	b.WriteString("\n\n")

	// 8. Quality Guidelines
	b.WriteString("## Quality Guidelines\n")
	fmt.Fprintf(&b, "Keep responses %s. Ask questions in roughly %d%% of your turns. Leave room for the customer to speak; stop immediately when interrupted.\n\n",
		cfg.Speech.ResponseLength, cfg.Speech.QuestionFrequency)

	// 9. Critical Rules
	b.WriteString("## Critical Rules\n")
	b.WriteString("Never invent prices, availability or facts not in the knowledge base. If unsure, say so and offer to follow up. When the customer asks to end the call or a handoff is due, close politely and stop.\n")

	if clause, ok := noiseClauses[cfg.Noise]; ok {
		b.WriteString("\n## Environment\n")
		b.WriteString(clause)
		b.WriteString("\n")
	}

	return b.String()
}
