package toolruntime

import "errors"

// ErrToolNotFound names a lookup of an unregistered tool. Runtime does not
// return it: Get reports a miss with its boolean, and the never-fails
// ExecuteToolCall path reports it in the result content (spec.md §7).
var ErrToolNotFound = errors.New("toolruntime: tool not found")
