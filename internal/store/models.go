package store

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Status is the lifecycle state of a persisted message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusDone      Status = "done"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"
)

// Visibility controls who can read a thread.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// User is an application user, keyed by the id from the auth provider.
type User struct {
	ID         string    `bson:"_id" json:"id"`
	ExternalID string    `bson:"externalId" json:"externalId"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Thread is a conversation owned by exactly one user.
type Thread struct {
	ID             string     `bson:"_id" json:"id"`
	UserID         string     `bson:"userId" json:"userId"`
	Title          string     `bson:"title" json:"title"`
	Visibility     Visibility `bson:"visibility" json:"visibility"`
	OriginThreadID string     `bson:"originThreadId,omitempty" json:"originThreadId,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// DefaultThreadTitle is used when a thread is created without a title.
const DefaultThreadTitle = "New Thread"

// Message is one turn in a thread. A thread owns its messages; deleting the
// thread cascades to them.
type Message struct {
	ID           string    `bson:"_id" json:"id"`
	ThreadID     string    `bson:"threadId" json:"threadId"`
	Role         Role      `bson:"role" json:"role"`
	Content      string    `bson:"content" json:"content"`
	Parts        any       `bson:"parts,omitempty" json:"parts,omitempty"`
	Annotations  any       `bson:"annotations,omitempty" json:"annotations,omitempty"`
	Model        string    `bson:"model,omitempty" json:"model,omitempty"`
	Status       Status    `bson:"status" json:"status"`
	IsErrored    bool      `bson:"isErrored" json:"isErrored"`
	IsStopped    bool      `bson:"isStopped" json:"isStopped"`
	ErrorMessage string    `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PartialShare is a share link exposing a thread up to a given message.
// The token doubles as the document id.
type PartialShare struct {
	Token               string    `bson:"_id" json:"token"`
	ThreadID            string    `bson:"threadId" json:"threadId"`
	UserID              string    `bson:"userId" json:"userId"`
	SharedUpToMessageID string    `bson:"sharedUpToMessageId" json:"sharedUpToMessageId"`
	CreatedAt           time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time `bson:"updatedAt" json:"updatedAt"`
}
