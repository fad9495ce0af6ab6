// Package resource implements shared budgets for a store.
//
//   - Memory: bytes held by blob read caches (non-blocking, fail-fast)
//   - Background: concurrent maintenance passes (trim and unload)
//   - IO: token bucket over region reads and writes
//
// All methods are safe for concurrent use and are no-ops on a nil
// Controller, so the budgets stay optional.
package resource
