// Package orchestration runs named flows of steps against incoming events.
//
// Each step runs under its own timeout and is retried with exponential
// backoff. The engine knows nothing about what the steps do.
package orchestration
