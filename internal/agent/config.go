// Package agent implements the recursion-bounded completion/tool-call loop
// that drives one Agent's turns over a Thread (spec.md §4.7), grounded on
// the teacher's internal/agent runtime but trimmed to the single batch/
// stream contract the spec defines.
package agent

import (
	"github.com/flores8/tyler/internal/threadstore"
	"github.com/flores8/tyler/internal/toolruntime"
)

// DefaultMaxToolRecursion bounds how many model→tool round trips a single
// Go/GoStream call may take before the loop halts with a fixed message
// (spec.md §4.7.1 step 3).
const DefaultMaxToolRecursion = 10

// Config is an Agent's static identity and wiring (spec.md §4.7).
type Config struct {
	ModelName   string
	Temperature float64

	Name    string
	Purpose string
	Notes   string

	Tools            *toolruntime.Runtime
	MaxToolRecursion int

	ThreadStore threadstore.Store
}
