// Package stm implements the transaction log lifecycle of a software
// transactional memory runtime: validation, two-phase commit with
// ordered write-set locking, nested transaction merge, and the
// before/after-commit hook protocol, over a shared version counter and a
// minimal TVar contract.
package stm
