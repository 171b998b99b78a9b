package chatbot

import "time"

// Role identifies the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a user message plus prior turns
type ChatRequest struct {
	Message string    `json:"message"`
	History []Message `json:"history,omitempty"`
}

// ChatResponse is the assistant's reply
type ChatResponse struct {
	Reply            string    `json:"reply"`
	ModelUsed        string    `json:"model_used"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int       `json:"processing_time_ms"`
}
