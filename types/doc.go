// Package types holds the shared data model of the Maia orchestration core:
// the task unit, the unified error taxonomy, and context.Context helpers for
// request-scoped identifiers. It is the lowest-level package and imports no
// other Maia package, so every other module can depend on it without cycles.
package types
