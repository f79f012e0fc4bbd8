// Package transcript keeps the ordered record of a companion session:
// conversation messages and diagnostic breadcrumbs.
//
// Items are appended in conversation order and never reordered. The only
// in-place change is to the text of an existing message, looked up by id.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// ItemType distinguishes conversation turns from diagnostics.
type ItemType string

const (
	TypeMessage    ItemType = "MESSAGE"
	TypeBreadcrumb ItemType = "BREADCRUMB"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks whether a message is still streaming.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// TimestampLayout is the wall-clock format shown next to items.
const TimestampLayout = "15:04:05.000"

// Item is one entry in the log.
type Item struct {
	ID        string         `json:"id"`
	Type      ItemType       `json:"type"`
	Role      Role           `json:"role,omitempty"`
	Title     string         `json:"title"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
	CreatedAt time.Time      `json:"created_at"`
	Status    Status         `json:"status"`

	// IsUserAction marks messages the companion injected on the user's
	// behalf, such as the greeting prompt sent on first listen.
	IsUserAction bool `json:"is_user_action,omitempty"`
}

// ChangeKind describes a log mutation.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeReset   ChangeKind = "reset"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Item Item       `json:"item"`
}

// NewID returns a fresh item id.
func NewID() string {
	return uuid.NewString()
}

// NewShortID returns a 32 character id, the length the realtime API accepts
// for client-created conversation items.
func NewShortID() string {
	return uuid.NewString()[:32]
}
