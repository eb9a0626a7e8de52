// Package handler implements the two workload endpoints.
//
// Sync serves a request start to finish on the calling goroutine: CPU work,
// idle wait, then a blocking copy of the generated file into the response.
// Async hijacks the connection, runs CPU work and the idle wait on a pool
// unit, then hands the response to a reactor that writes it whenever the
// socket has room. Only the header phase holds a unit.
package handler
