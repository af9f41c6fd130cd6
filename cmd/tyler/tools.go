package main

import (
	"net/http"

	"github.com/flores8/tyler/internal/toolruntime"
	"github.com/flores8/tyler/internal/toolruntime/builtin"
)

// registerBuiltinTools loads every built-in tool bundle into tools, the
// way cfg.Tools would be populated by a static module registry (spec.md
// §9's preferred static-registration path).
func registerBuiltinTools(tools *toolruntime.Runtime) {
	tools.LoadToolModule(builtin.CalculatorTools())
	tools.LoadToolModule(builtin.FilesTools("."))
	tools.LoadToolModule(builtin.WebTools(http.DefaultClient))
}
