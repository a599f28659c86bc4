// Package session provides the session identity that scopes word-cache
// entries. A session lives for one app process (one browser-companion run);
// cache entries tagged with an older session ID are purged when the cache
// opens, so audio synthesized under a different voice or configuration is
// never served again.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID identifies one app session. The value combines the session start time
// with a random suffix so two instances started in the same millisecond (two
// open tabs) still get distinct IDs.
type ID string

// New mints a session ID of the form "<unix-millis>-<8 hex chars>". The
// clock is injectable for tests; pass nil to use [time.Now].
func New(clock func() time.Time) ID {
	if clock == nil {
		clock = time.Now
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return ID(fmt.Sprintf("%d-%s", clock().UnixMilli(), suffix))
}

// String returns the ID as a plain string.
func (id ID) String() string { return string(id) }
