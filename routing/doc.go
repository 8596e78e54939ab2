// Package routing decides how a request is executed: the Classifier maps
// request text to an intent, a complexity score, and ranked candidate
// domains; the Selector turns that classification into an execution plan
// (single handler, sequential list, or handoff swarm). Both are pure
// functions of their inputs and the registry snapshot, so results are
// deterministic and testable.
package routing
