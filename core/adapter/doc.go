// Package adapter maps business rows into the platform task and worker
// models. Every mapping is a pure function of its input row.
package adapter
