package event

import (
	"fmt"
	"slices"
	"strings"
)

// Level is the severity attached to a crash report. Values match the native
// SDK so the crash handler can read them without translation.
type Level int

const (
	LevelDebug   Level = -1
	LevelInfo    Level = 0
	LevelWarning Level = 1
	LevelError   Level = 2
	LevelFatal   Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts the lowercase level names ("warn" is an alias for warning).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// User field names recognised in Context.User.
const (
	UserID        = "id"
	UserUsername  = "username"
	UserEmail     = "email"
	UserIPAddress = "ip_address"
)

// User identifies the person affected by a crash. Empty fields are absent.
type User struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// fields returns the non-empty fields keyed by their wire name.
func (u User) fields() map[string]string {
	m := make(map[string]string, 4)
	if u.ID != "" {
		m[UserID] = u.ID
	}
	if u.Username != "" {
		m[UserUsername] = u.Username
	}
	if u.Email != "" {
		m[UserEmail] = u.Email
	}
	if u.IPAddress != "" {
		m[UserIPAddress] = u.IPAddress
	}
	return m
}

// Context is the error context attached to the next crash report.
// Optional strings are nil when unset; maps and Fingerprint are never nil.
type Context struct {
	Release     *string           `json:"release"`
	Level       Level             `json:"level"`
	User        map[string]string `json:"user"`
	Dist        *string           `json:"dist"`
	Environment *string           `json:"environment"`
	Transaction *string           `json:"transaction"`
	Tags        map[string]string `json:"tags"`
	Extra       map[string]string `json:"extra"`
	Fingerprint []string          `json:"fingerprint"`
}

// NewContext returns an empty context at the default error level.
func NewContext() *Context {
	return &Context{
		Level:       LevelError,
		User:        map[string]string{},
		Tags:        map[string]string{},
		Extra:       map[string]string{},
		Fingerprint: []string{},
	}
}

// SetUser replaces the user map with the non-empty fields of u.
func (c *Context) SetUser(u User) {
	c.User = u.fields()
}

// Clone returns a deep copy that shares no memory with c.
func (c *Context) Clone() *Context {
	return &Context{
		Release:     cloneString(c.Release),
		Level:       c.Level,
		User:        cloneMap(c.User),
		Dist:        cloneString(c.Dist),
		Environment: cloneString(c.Environment),
		Transaction: cloneString(c.Transaction),
		Tags:        cloneMap(c.Tags),
		Extra:       cloneMap(c.Extra),
		Fingerprint: append([]string{}, c.Fingerprint...),
	}
}

// Equal reports whether both contexts carry the same values.
func (c *Context) Equal(o *Context) bool {
	return equalString(c.Release, o.Release) &&
		c.Level == o.Level &&
		equalMap(c.User, o.User) &&
		equalString(c.Dist, o.Dist) &&
		equalString(c.Environment, o.Environment) &&
		equalString(c.Transaction, o.Transaction) &&
		equalMap(c.Tags, o.Tags) &&
		equalMap(c.Extra, o.Extra) &&
		slices.Equal(c.Fingerprint, o.Fingerprint)
}

// Breadcrumb is a short record of a recent application event. Both fields
// are optional and written as nil when absent.
type Breadcrumb struct {
	Message *string `json:"message"`
	Level   *string `json:"level"`
}

// String returns a pointer to s, for optional fields.
func String(s string) *string { return &s }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalMap(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
