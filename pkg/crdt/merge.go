// Package crdt contains state based CRDTs that converge by merging.
//
// Every container implements Merger: Merge replaces the receiver with the least
// upper bound of the receiver and the argument. Merge is idempotent,
// commutative and associative, so replicas may exchange state in any order and
// any topology and still end up equal.
//
// The argument of Merge is consumed. Containers move maps and values out of it,
// so the caller must not use it after the call.
//
// Containers do no internal locking. A replica shared between goroutines has to
// serialise mutations and merges itself.
package crdt

// Merger is the join-semilattice contract. T is normally the implementing
// pointer type, e.g. *GSet[string] implements Merger[*GSet[string]].
type Merger[T any] interface {
	Merge(other T)
}
