// Package cache provides a byte-bounded LRU for region blobs read from
// remote stores.
//
// Entries are keyed by blob name. Capacity is counted in payload bytes and
// optionally charged against a resource.Controller memory budget.
package cache
