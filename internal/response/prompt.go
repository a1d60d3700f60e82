package response

import (
	"strings"

	"omnichannel-support/internal/event"
	"omnichannel-support/internal/knowledge"
)

const basePrompt = `You are an expert customer success agent.

## Your Goal
Provide direct, helpful and empathetic answers using the provided KNOWLEDGE BASE CONTEXT.

## Context Provided to You
- A support ticket has already been created for this interaction.
- The customer's conversation history has already been retrieved.

## Channel Awareness
- Email: formal, detailed responses. A greeting and signature are added for you.
- Chat: concise and conversational. Keep responses under 250 characters.
- Web form: semi-formal. Answer the question directly and professionally.

## Hard Constraints
- Never tell the customer you are creating a ticket or checking history.
- Never discuss pricing. State that the account team will follow up.
- Never share internal system details.
- Always use the KNOWLEDGE BASE CONTEXT to answer. If the answer is not there, say so and offer to escalate.

## Response Standards
- Give the answer in the first two sentences.
- Acknowledge the customer's specific problem.
- Do not describe your internal steps.`

// SentimentInstruction asks the backend for the machine-parseable sentiment prefix.
const SentimentInstruction = "IMPORTANT: You must start your response with '[SENTIMENT: X.X]' where X.X is a score from 0.0 to 1.0 " +
	"(0=angry, 0.5=neutral, 1.0=happy). Then provide your actual response."

const (
	noKnowledge          = "No relevant information found in the knowledge base."
	knowledgeUnavailable = "The knowledge base is currently unavailable."
)

// SystemPrompt builds the system message for one generation call.
func SystemPrompt(channel event.Channel, kb knowledge.Result) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nCURRENT CHANNEL: ")
	b.WriteString(string(channel))
	b.WriteString("\n\nKNOWLEDGE BASE CONTEXT:\n")
	switch kb.Status {
	case knowledge.StatusFound:
		b.WriteString(kb.Context())
	case knowledge.StatusUnavailable:
		b.WriteString(knowledgeUnavailable)
	default:
		b.WriteString(noKnowledge)
	}
	b.WriteString("\n\n")
	b.WriteString(SentimentInstruction)
	return b.String()
}
