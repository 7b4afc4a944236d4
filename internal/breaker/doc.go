// Package breaker implements a circuit breaker that stops calling a failing
// dependency until it has had time to recover.
//
// # States
//
// A Breaker starts closed. Consecutive failures within the monitoring period
// are counted; reaching the threshold opens the circuit and every call is
// rejected with an *OpenError (wrapping pgready.ErrCircuitOpen) without running
// the operation. Once the reset timeout has passed since the last failure, the
// next call is let through as a trial: success closes the circuit, failure
// reopens it.
//
// # Thread Safety
//
// A Breaker is safe for concurrent use. Only one trial call runs while the
// circuit is half-open; concurrent callers are rejected until it completes.
package breaker
