package domain

import "time"

type SessionID string
type UserID string
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a chat message can carry.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Timestamp = time.Time

// Metadata keys shared by the processor, the vector store and the filters.
const (
	MetaSource     = "source"
	MetaSessionID  = "session_id"
	MetaChunkIndex = "chunk_index"
	MetaPageCount  = "page_count"
)

// Filter is an exact-match predicate over chunk metadata.
type Filter map[string]string

// SessionFilter scopes retrieval to the chunks uploaded in one session.
func SessionFilter(id SessionID) Filter {
	return Filter{MetaSessionID: string(id)}
}
