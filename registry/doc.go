// Package registry provides the catalog of task handlers available to the
// orchestration core. Handlers self-register at startup with a unique name
// and a fixed set of capability tags; the registry is read-mostly for the
// rest of the process lifetime.
package registry
