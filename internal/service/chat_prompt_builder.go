package service

import (
	"strings"

	"rag-chat/internal/domain"
)

// SystemPrompt es la instrucción fija (persona + directivas) enviada con cada turno.
const SystemPrompt = "You are a wise prophet. Provide philosophical debate responses based on the context provided and the user's question. " +
	"Consider the conversation history to maintain context and continuity. " +
	"Ask follow up questions sometimes if it makes sense. " +
	"Do not at any time let the user know you are using a context, just use it to answer the user's question."

const (
	historyHeader      = "Previous conversation:"
	currentQuestionTag = "Current question: "
	contextInstruction = "Use the following context to enrich the response to the user's message:"
	contextDisclaimer  = "Do not at any time let the user know you are using a context, just use it to answer the user's question."
)

// ChatPromptBuilder arma el prompt aumentado: historial, mensaje actual y contexto recuperado.
type ChatPromptBuilder struct{}

// FormatHistory devuelve el bloque de historial o "" si no hay mensajes previos.
func (ChatPromptBuilder) FormatHistory(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(historyHeader)
	sb.WriteString("\n")
	for _, m := range history {
		sb.WriteString(m.Role())
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// BuildUserPrompt arma el prompt de usuario en el orden historial, mensaje, contexto.
func (b ChatPromptBuilder) BuildUserPrompt(history []domain.Message, userMessage, contextBlock string) string {
	var sb strings.Builder

	if historyText := b.FormatHistory(history); historyText != "" {
		sb.WriteString(historyText)
		sb.WriteString("\n\n")
		sb.WriteString(currentQuestionTag)
	}
	sb.WriteString(userMessage)

	if ctxText := strings.TrimSpace(contextBlock); ctxText != "" {
		sb.WriteString("\n\n")
		sb.WriteString(contextInstruction)
		sb.WriteString("\n")
		sb.WriteString(ctxText)
		sb.WriteString("\n\n")
		sb.WriteString(contextDisclaimer)
	}

	return sb.String()
}
