// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// The stores are the only writers of durable state. Every operation is
// atomic from the caller's view; cross-store atomicity is achieved by
// running the WithTx variants inside RunInTransaction.
package store
