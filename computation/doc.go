// Package computation implements the state of the coordinator: named
// computations, their submission logs, quorum and authorization policy, and the
// result engine.
//
// A Computation moves through two states. It starts Open and accepts
// submissions from its participants. For Average, Minimum and Maximum the first
// successful Compute moves it to Locked: further submissions are rejected and
// every later Compute returns the frozen result. KeyMatch computations stay Open
// forever.
//
// Averages, minima and maxima use the latest submission of each contributor;
// key matching considers every submission ever made. Quorum always counts
// distinct contributors, never submissions.
//
// All operations are synchronous. Each Computation is guarded by its own mutex
// and the Registry lock only protects the name map.
package computation
