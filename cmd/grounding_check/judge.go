package main

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"rag-chat/internal/llm"
)

// judgeResponse es la respuesta estructurada del juez evaluador.
type judgeResponse struct {
	Reasoning       string `json:"reasoning"`
	RelevanceScore  int    `json:"relevance_score"`
	ContinuityScore int    `json:"continuity_score"`
	PersonaScore    int    `json:"persona_score"`
}

const judgeSystemPrompt = "You are a strict evaluator of a retrieval-augmented philosophical chat assistant. Answer only with JSON."

var (
	fenceStart = regexp.MustCompile("(?is)^\\s*```(?:json)?\\s*")
	fenceEnd   = regexp.MustCompile("(?is)\\s*```\\s*$")
)

// disclosurePhrases delatan que el asistente menciona el contexto recuperado.
var disclosurePhrases = []string{
	"based on the context",
	"according to the context",
	"the provided context",
	"the context provided",
	"the context you provided",
	"in the context",
	"from the context",
	"the given context",
	"segun el contexto",
	"el contexto proporcionado",
	"en el contexto",
}

func evaluateResponse(ctx context.Context, judge llm.Completer, sc Scenario, history []string, response string) (judgeResponse, error) {
	disclosed := detectContextDisclosure(response)
	prompt := buildJudgePrompt(sc, history, response, disclosed)

	raw, err := judge.Complete(ctx, prompt, judgeSystemPrompt)
	if err != nil {
		return judgeResponse{}, err
	}

	jsonStr := extractFirstJSONObject(cleanJudgeOutput(raw))
	if jsonStr == "" {
		return judgeResponse{}, fmt.Errorf("judge returned non-json: %q", raw)
	}

	var jr judgeResponse
	if err := json.Unmarshal([]byte(jsonStr), &jr); err != nil {
		return judgeResponse{}, fmt.Errorf("parse judge json: %w (raw=%q)", err, jsonStr)
	}

	jr.RelevanceScore = clamp1to5(jr.RelevanceScore)
	jr.ContinuityScore = clamp1to5(jr.ContinuityScore)
	jr.PersonaScore = clamp1to5(jr.PersonaScore)

	// Mencionar el contexto rompe la directiva de persona.
	if disclosed && jr.PersonaScore > 2 {
		jr.PersonaScore = 2
	}
	return jr, nil
}

func detectContextDisclosure(response string) bool {
	norm := normalizeASCIIString(strings.ToLower(response))
	for _, p := range disclosurePhrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

func buildJudgePrompt(sc Scenario, history []string, response string, disclosed bool) string {
	historyText := "(none)"
	if len(history) > 0 {
		historyText = strings.Join(history, " | ")
	}
	return fmt.Sprintf(
		`Evaluate the assistant answer below.

Previous user messages: %s
User question: %q
Assistant answer: %q
Expected focus: %s
Heuristic flags: mentions_context=%t

Score each dimension from 1 to 5:
1) relevance: does the answer address the question and the expected focus?
2) continuity: does it stay consistent with the previous user messages (5 if there were none and it does not invent any)?
3) persona: does it sound like a wise prophet engaging in philosophical debate, never mentioning that it uses a context?
   If mentions_context=true the persona score is at most 2.

Reply ONLY with JSON (no markdown):
{
  "reasoning": "...",
  "relevance_score": 0,
  "continuity_score": 0,
  "persona_score": 0
}`,
		historyText, sc.Input, response, sc.ExpectedFocus, disclosed,
	)
}

// cleanJudgeOutput quita BOM y fences ```json ... ```.
func cleanJudgeOutput(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF"))
	s = fenceStart.ReplaceAllString(s, "")
	s = fenceEnd.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// extractFirstJSONObject devuelve el primer objeto {...} balanceado, ignorando llaves dentro de strings.
func extractFirstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}

func clamp1to5(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func normalizeASCIIString(s string) string {
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
		"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
	)
	return replacer.Replace(s)
}
