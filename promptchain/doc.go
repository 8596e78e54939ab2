// Package promptchain executes a fixed, ordered sequence of sub-tasks within
// a single handler's turn. Chains are loaded from static YAML configuration
// and are read-only at execution time; each step's prompt template may
// reference any prior step's stored output by key, and every step routes
// through the dispatch policy like any other model call.
package promptchain
