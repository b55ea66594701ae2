package realtime

import "errors"

// ErrNotConnected reports a send attempted while no session is live. Callers
// queue the submission instead of failing it.
var ErrNotConnected = errors.New("realtime: not connected")
