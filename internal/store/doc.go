// Package store is the reference remote persistence service that the
// gateway talks to.
//
// Ownership boundary:
// - resource records (metadata, data payload, attributes, permissions)
//
// - category search and paging
//
// - data-uri decoding for raw downloads
//
// Storage is delegated to a Backend chosen from a Registry by id
// (store.memory, store.fs, store.badger). The service does not know about
// maps, details or thumbnails; those are orchestration concerns.
package store
