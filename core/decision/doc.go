// Package decision turns a frozen DecisionContext into a worker choice and a
// DecisionTrace.
//
// Every call to Engine.Decide emits exactly one trace, whether a strategy
// picked a worker, none did, or a strategy failed.
package decision
