package domain

import "time"

// Message es un turno individual dentro de una sesión. Inmutable una vez agregado.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
	IsUser    bool      `json:"is_user"`
}

// Role devuelve la etiqueta usada al formatear historial para el LLM.
func (m Message) Role() string {
	if m.IsUser {
		return "User"
	}
	return "Assistant"
}
