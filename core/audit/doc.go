// Package audit stores the append-only platform audit log: decision traces,
// allocations, learning samples, bypass attempts and orchestration runs.
package audit
