package domain

// Session es la secuencia ordenada de mensajes de una conversación.
type Session struct {
	ID       string    `json:"session_id"`
	Messages []Message `json:"messages"`
}
