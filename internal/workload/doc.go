// Package workload provides the three synthetic workloads served by poolserve.
//
// Each generator consumes one kind of resource and returns a value that ends
// up in the HTTP response:
//
//   - CPU: repeated SHA-256 over a random seed, returned as a hex digest
//   - Idle: a plain wait, returned as a latency marker
//   - FileCache: size-keyed files of ASCII digits, streamed as the body
//
// The generators hold no per-request state. FileCache is the only long-lived
// shared structure and is safe for concurrent use.
package workload
