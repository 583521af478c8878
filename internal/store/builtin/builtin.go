// Package builtin wires the bundled storage backends into a registry.
package builtin

import (
	"github.com/danmuck/geoctl/internal/store"
	"github.com/danmuck/geoctl/internal/store/badger"
	"github.com/danmuck/geoctl/internal/store/fs"
	"github.com/danmuck/geoctl/internal/store/memory"
)

// DefaultBackend is used when configuration leaves the backend unset.
const DefaultBackend = memory.BackendID

// Registry returns a registry holding every bundled backend.
func Registry() *store.Registry {
	r := store.NewRegistry()
	for _, f := range []store.Factory{memory.Factory(), fs.Factory(), badger.Factory()} {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}
