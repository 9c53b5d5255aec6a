package models

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one turn of a user's transcript.
type ChatMessage struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}
