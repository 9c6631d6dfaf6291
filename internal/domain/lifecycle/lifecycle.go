// Package lifecycle holds shared start/stop bounds for long-lived components.
package lifecycle

import "time"

// DefaultTimeout bounds every fx start and stop hook.
const DefaultTimeout = 10 * time.Second
