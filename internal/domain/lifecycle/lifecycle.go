// Package lifecycle holds shared timing constants for start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds a single lifecycle hook such as a database ping or server shutdown.
const DefaultTimeout = 10 * time.Second
