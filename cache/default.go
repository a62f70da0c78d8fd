package cache

import (
	"github.com/Konsultn-Engineering/accessorcache/ast"
	"github.com/Konsultn-Engineering/accessorcache/compiler"
	"github.com/Konsultn-Engineering/accessorcache/displayname"
	"github.com/Konsultn-Engineering/accessorcache/member"
)

var defaultCache = mustNew()

func mustNew() *AccessorCache {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

// Default is the process-wide cache used by the package-level helpers.
func Default() *AccessorCache {
	return defaultCache
}

// Accessor is GetCachedAccessor on the default cache.
func Accessor[T, P any](ref member.Ref, expr *ast.Lambda[T, P]) (*compiler.Accessor[T, P], displayname.Name, error) {
	return GetCachedAccessor(defaultCache, ref, expr)
}

// Reset clears every store of the default cache and restores its display
// name policy to the defaults. Meant for test setup.
func Reset() {
	defaultCache.ClearAll()
	defaultCache.Policy().Reset()
}
