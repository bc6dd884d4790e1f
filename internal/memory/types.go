package memory

import "time"

// Turn roles. A summary turn stands in for a span of older turns collapsed
// by compaction.
const (
	RoleUser    = "user"
	RoleModel   = "model"
	RoleSummary = "summary"
)

// Compaction policies.
const (
	PolicySlide     = "slide"
	PolicySummarize = "summarize"
)

// Turn is one role-tagged unit of a user's conversation history.
type Turn struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
