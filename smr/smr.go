// Package smr defines the safe-memory-reclamation contract that every
// lock-free structure in this module is built against: a guard
// that protects a loaded pointer from reclamation for the duration of
// a read, and a retire operation that defers a node's disposal until
// no guard protects it any longer.
//
// The package itself is the contract only. Concrete backends live in
// smr/hp (hazard pointers) and smr/epoch (epoch-based reclamation);
// list, splitlist and skiplist are written against the Domain
// interface below and never assume a particular backend.
package smr

import "errors"

// ErrGuardExhausted is returned when a Domain cannot provide the number
// of guards an operation requires. It is fatal at construction and
// propagated (never silently swallowed) at operation time.
var ErrGuardExhausted = errors.New("smr: guard exhausted")

// Guard is a single protection slot. While Protect's loader keeps
// returning the same pointer, that pointer is guaranteed not to be
// reclaimed by any Retire call on the same Domain.
type Guard[T any] interface {
	// Protect implements the standard hazard-pointer protection idiom:
	// load the atomic slot via loader, publish the loaded pointer into
	// the guard, re-read via loader, and retry if it changed. Returns
	// the stabilized, protected pointer (nil is a valid, protected
	// "no node" result).
	Protect(loader func() *T) *T

	// Set publishes ptr directly without the read-validate-retry loop,
	// for callers that already hold a valid, racily-observed pointer
	// and only need it kept alive (e.g. re-protecting a node already
	// returned by a prior Protect on the same Domain).
	Set(ptr *T)

	// Clear releases protection, allowing the previously protected
	// node to be reclaimed once no other guard protects it.
	Clear()
}

// GuardArray is a bulk reservation of N independent Guards, handed out
// together so a single operation (e.g. skip-list find, which needs two
// guards per level plus scratch) can acquire everything it needs in
// one call instead of risking partial exhaustion mid-traversal.
type GuardArray[T any] interface {
	At(i int) Guard[T]
	Len() int
	// Release returns every guard in the array to the Domain. Callers
	// must call Release exactly once, typically via defer.
	Release()
}

// Domain is the SMR collaborator contract. A single Domain instance is
// shared by every node of one data structure instance; nothing here is
// process-global, the structure just holds a handle.
type Domain[T any] interface {
	// NewGuardArray reserves n guard slots for the calling goroutine.
	// Returns ErrGuardExhausted if n exceeds what this Domain can
	// provide (checked via CheckAvailableGuards first, for callers
	// that want to fail fast before doing any traversal work).
	NewGuardArray(n int) (GuardArray[T], error)

	// CheckAvailableGuards reports ErrGuardExhausted without
	// allocating anything, for constructors that must fail fast.
	CheckAvailableGuards(n int) error

	// Retire enqueues ptr for deferred reclamation. dispose is called
	// exactly once, after no Guard anywhere protects ptr.
	Retire(ptr *T, dispose func(*T))

	// ReadSection brackets a read-only traversal for epoch-style
	// backends; within it all loads are safe without individual
	// Protect calls, and retire is deferred until the outermost
	// section on every participating goroutine has ended. Hazard
	// pointer backends implement this as a no-op wrapper.
	ReadSection(fn func())

	// ForceReclaim is a test hook: run a reclamation pass synchronously
	// regardless of the backend's normal amortization schedule.
	ForceReclaim()
}
