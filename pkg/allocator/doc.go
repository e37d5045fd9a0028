// Package allocator provides a reference deploy.AllocationManager: an
// in-process, device-keyed capacity ledger. Reservations are scoped to a
// single deployment via deploy.ScopedAllocations and released together on
// rollback.
package allocator
