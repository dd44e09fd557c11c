// Package gateway is the single sanctioned entry point for assigning a
// worker to a task.
//
// Gateway.Dispatch composes match, evaluate, select, allocate and learning
// record under a takeover mode that decides how much authority the
// platform's pick has over the worker proposed by the business layer.
// Dispatch never panics and always leaves a decision trace behind.
package gateway
