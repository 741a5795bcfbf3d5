package domain

// ChatMessage is one entry of a user's chat transcript.
//
// Sources is nil when the record has no sources field at all, which is
// different from an assistant answer that cited nothing (empty, non-nil).
type ChatMessage struct {
	ID        MessageID
	Role      Role
	Content   string
	Sources   []string
	Timestamp Timestamp
}

// Identity is the caller derived from a verified bearer token.
type Identity struct {
	UID     UserID
	Email   string
	Name    string
	Picture string
}
