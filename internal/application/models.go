package application

import (
	"time"

	"github.com/example/taskplanner/internal/persistence"
)

// Principal is the identity resolved from a session token.
type Principal struct {
	Label     string
	Role      Role
	ExpiresAt time.Time
}

// ListParams paginates and filters collection listings. Filters run before
// Skip and Limit are applied. Limit is taken literally: zero selects no
// records and NoLimit returns all of them.
type ListParams struct {
	Skip    int
	Limit   int
	Filters []Predicate
}

// DefaultListLimit applies when a request does not specify a limit.
const DefaultListLimit = 100

// NoLimit disables the page size.
const NoLimit = -1

// Predicate selects records during listing.
type Predicate func(persistence.Record) bool

// LoginParams carries a submitted access code.
type LoginParams struct {
	Secret   string
	ClientIP string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string
	Principal Principal
}

// AccessCodeView is an access code without its hash.
type AccessCodeView struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	Role      Role   `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// CreateAccessCodeParams registers a new access code.
type CreateAccessCodeParams struct {
	Label string
	Code  string
	Role  string
}

// UpdateAccessCodeParams changes the mutable parts of an access code.
type UpdateAccessCodeParams struct {
	IsActive *bool
	Role     *string
}

// AccessCodeSeed is a default code registered when none exist.
type AccessCodeSeed struct {
	Label string `yaml:"label"`
	Code  string `yaml:"code"`
	Role  string `yaml:"role"`
}

// TaskListParams selects tasks for listing.
type TaskListParams struct {
	Skip            int
	Limit           int
	Assignee        string
	IncludeArchived bool
	// LocalOnly bypasses a configured external task source.
	LocalOnly bool
}

// ChatParams is one user turn.
type ChatParams struct {
	Message string
	Context string
}

// ChatReply is the assistant answer to a user turn.
type ChatReply struct {
	Response  string
	CreatedAt string
}

// SearchParams is a global search request.
type SearchParams struct {
	Query      string
	Categories []string
}

// SearchResult groups matches per category.
type SearchResult struct {
	Query        string
	Results      map[string][]persistence.Record
	TotalResults int
}
