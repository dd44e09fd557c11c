// Package store defines the persistence collaborator of the platform layer.
//
// Business tables stay owned by the business layer: the platform only needs
// fetch-by-id with a fixed projection, a worker listing per company and a
// conditional update of the assignment columns. Rows are returned untouched;
// package adapter maps them into the uniform task and worker models.
package store
