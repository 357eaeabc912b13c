// Package proxy selects egress identities for outbound fetches and tracks
// how each one performs.
//
// A Manager owns an ordered pool of identities and picks one per fetch using
// a rotation strategy:
//
//	round_robin  cycle through the pool in order
//	random       uniform pick
//	smart        highest success rate among proxies that still look viable
//
// Callers report the outcome of every fetch back with ReportSuccess or
// ReportFailure. An empty pool disables proxying: GetProxy returns false and
// the fetch goes out directly.
package proxy
