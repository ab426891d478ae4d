package main

import "errors"

// ErrSessionInitFailed wraps any failure during session wiring (config,
// templates, or provider selection) so operators can grep a single
// sentinel out of startup logs regardless of which step failed.
var ErrSessionInitFailed = errors.New("session initialization failed")
