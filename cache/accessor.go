package cache

import (
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/accessorcache/ast"
	"github.com/Konsultn-Engineering/accessorcache/compiler"
	"github.com/Konsultn-Engineering/accessorcache/displayname"
	"github.com/Konsultn-Engineering/accessorcache/member"
)

// GetCachedAccessor returns the compiled accessor for member ref of model
// type T, compiling expr on a miss, together with the cached display name.
//
//   - ref absent: expr is compiled on every call and nothing is stored. The
//     display name is resolved by the configured resolver, if any, on every
//     call.
//   - hit: the stored accessor and name are returned as they are.
//   - miss: expr is compiled once. If the policy has name caching enabled the
//     name is resolved and the entry stored; otherwise the fresh accessor is
//     returned with no name and nothing is stored.
//
// Compile and resolver errors are returned unchanged and never cached.
func GetCachedAccessor[T, P any](c *AccessorCache, ref member.Ref, expr *ast.Lambda[T, P]) (*compiler.Accessor[T, P], displayname.Name, error) {
	t := reflect.TypeFor[T]()

	d, ok := ref.Get()
	if !ok {
		return uncached(c, t, expr)
	}

	gen := c.store(t).current()
	if e, ok := gen.table.load(d); ok {
		c.metrics.add(c.metrics.hits, t)
		return typed[T, P](e, d)
	}
	c.metrics.add(c.metrics.misses, t)

	if !c.coalesce {
		e, err := miss(c, t, gen, ref, d, expr)
		if err != nil {
			return nil, displayname.None(), err
		}
		return typed[T, P](e, d)
	}

	v, err, shared := c.flight.Do(flightKey(gen.epoch, expr.Fingerprint(), d), func() (any, error) {
		return miss(c, t, gen, ref, d, expr)
	})
	if err != nil {
		return nil, displayname.None(), err
	}
	if shared {
		c.log.V(1).Info("miss coalesced", "type", t.String(), "member", d.Path)
	}
	return typed[T, P](v.(*entry), d)
}

// AccessorFor extracts the member from expr and looks it up, the way a rule
// builder does for RuleFor(x => x.Member).
func AccessorFor[T, P any](c *AccessorCache, expr *ast.Lambda[T, P]) (*compiler.Accessor[T, P], displayname.Name, error) {
	return GetCachedAccessor(c, member.Extract(expr), expr)
}

// Clear drops every entry for model type T.
func Clear[T any](c *AccessorCache) {
	c.ClearType(reflect.TypeFor[T]())
}

// StatsFor reports on the store of model type T.
func StatsFor[T any](c *AccessorCache) Stats {
	return c.Stats(reflect.TypeFor[T]())
}

// miss compiles expr and, when the policy allows, resolves the name and
// stores the entry in gen. The returned entry is the one visible in the
// store, which may come from a concurrent miss that stored first.
func miss[T, P any](c *AccessorCache, t reflect.Type, gen *generation, ref member.Ref, d member.Descriptor, expr *ast.Lambda[T, P]) (*entry, error) {
	acc, err := compiler.Compile(expr)
	if err != nil {
		c.metrics.add(c.metrics.failures, t)
		c.log.Error(err, "compile accessor", "type", t.String(), "member", d.Path)
		return nil, err
	}

	snap := c.policy.Snapshot()
	if snap.DisableNameCaching {
		c.log.V(1).Info("accessor not stored, name caching disabled", "type", t.String(), "member", d.Path)
		return &entry{accessor: acc, name: displayname.None()}, nil
	}

	name, err := snap.Resolve(t, ref, expr)
	if err != nil {
		c.metrics.add(c.metrics.failures, t)
		c.log.Error(err, "resolve display name", "type", t.String(), "member", d.Path)
		return nil, err
	}

	e, loaded := gen.table.loadOrStore(d, &entry{accessor: acc, name: name})
	c.log.V(1).Info("accessor stored",
		"type", t.String(),
		"member", d.Path,
		"result", expr.ResultType().String(),
		"fingerprint", expr.Fingerprint(),
		"epoch", gen.epoch.String(),
		"raced", loaded,
	)
	return e, nil
}

func uncached[T, P any](c *AccessorCache, t reflect.Type, expr *ast.Lambda[T, P]) (*compiler.Accessor[T, P], displayname.Name, error) {
	c.metrics.add(c.metrics.uncacheable, t)

	acc, err := compiler.Compile(expr)
	if err != nil {
		c.metrics.add(c.metrics.failures, t)
		c.log.Error(err, "compile accessor", "type", t.String())
		return nil, displayname.None(), err
	}
	c.log.V(1).Info("uncacheable expression",
		"type", t.String(),
		"expr", expr.String(),
		"kind", expr.BodyNode().Type().String(),
	)

	// nothing is stored here, so the name is resolved on every call
	// regardless of the name caching flag
	name, err := c.policy.Resolve(t, member.Absent(), expr)
	if err != nil {
		c.metrics.add(c.metrics.failures, t)
		c.log.Error(err, "resolve display name", "type", t.String())
		return nil, displayname.None(), err
	}
	return acc, name, nil
}

func typed[T, P any](e *entry, d member.Descriptor) (*compiler.Accessor[T, P], displayname.Name, error) {
	acc, ok := e.accessor.(*compiler.Accessor[T, P])
	if !ok {
		return nil, displayname.None(), fmt.Errorf("%w: %s holds %T, want %s",
			ErrAccessorType, d, e.accessor, reflect.TypeFor[*compiler.Accessor[T, P]]())
	}
	return acc, e.name, nil
}
