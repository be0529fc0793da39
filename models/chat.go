package models

import "time"

// ChatRole ist die Rolle eines Gesprächsbeitrags.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Citation verweist aus einer Assistenten-Antwort auf ein Quell-Paper.
type Citation struct {
	PaperID    string  `json:"paperId"`
	PaperTitle string  `json:"paperTitle"`
	Excerpt    string  `json:"excerpt"`
	Relevance  float64 `json:"relevance"`
}

// ChatMessage ist ein Beitrag im Q&A-Verlauf.
type ChatMessage struct {
	ID        string     `json:"id"`
	Role      ChatRole   `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ChatTurn ist die reduzierte Form eines Beitrags, wie sie an das Modell geht.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
