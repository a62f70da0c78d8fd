package displayname

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/Konsultn-Engineering/accessorcache/ast"
	"github.com/Konsultn-Engineering/accessorcache/member"
)

// Resolver computes the display name of a member of container. m may be
// absent when the expression did not reduce to a member. An error is
// returned to the caller untouched.
type Resolver interface {
	Resolve(container reflect.Type, m member.Ref, expr ast.Expr) (Name, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(container reflect.Type, m member.Ref, expr ast.Expr) (Name, error)

func (f ResolverFunc) Resolve(container reflect.Type, m member.Ref, expr ast.Expr) (Name, error) {
	return f(container, m, expr)
}

// Snapshot is one consistent reading of a Policy.
type Snapshot struct {
	Resolver           Resolver
	DisableNameCaching bool
}

// Resolve runs the snapshot's resolver, or returns None when there is none.
func (s Snapshot) Resolve(container reflect.Type, m member.Ref, expr ast.Expr) (Name, error) {
	if s.Resolver == nil {
		return None(), nil
	}
	return s.Resolver.Resolve(container, m, expr)
}

// Policy holds the display name resolver and the name caching flag.
//
// Reads load an immutable snapshot and never lock. Writers are serialised
// and publish a new snapshot, so a reader always sees a resolver together
// with the flag that was set alongside it.
type Policy struct {
	mu sync.Mutex
	st atomic.Pointer[Snapshot]
}

// NewPolicy returns a policy with no resolver and name caching enabled.
func NewPolicy() *Policy {
	p := &Policy{}
	p.st.Store(&Snapshot{})
	return p
}

// Snapshot returns the current resolver and flag.
func (p *Policy) Snapshot() Snapshot {
	return *p.load()
}

func (p *Policy) Resolver() Resolver {
	return p.load().Resolver
}

func (p *Policy) NameCachingDisabled() bool {
	return p.load().DisableNameCaching
}

// SetResolver installs r, or clears the resolver when r is nil.
//
// Installing a resolver also disables name caching: a custom resolver may
// depend on ambient state, so its answers are not frozen unless
// SetDisableNameCaching(false) is called afterwards. Clearing the resolver
// leaves the flag as it is.
func (p *Policy) SetResolver(r Resolver) {
	if f, ok := r.(ResolverFunc); ok && f == nil {
		r = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := *p.load()
	next.Resolver = r
	if r != nil {
		next.DisableNameCaching = true
	}
	p.st.Store(&next)
}

// SetDisableNameCaching overrides the caching flag.
func (p *Policy) SetDisableNameCaching(disable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := *p.load()
	next.DisableNameCaching = disable
	p.st.Store(&next)
}

// load tolerates the zero Policy, which behaves like NewPolicy().
func (p *Policy) load() *Snapshot {
	if s := p.st.Load(); s != nil {
		return s
	}
	return &Snapshot{}
}

// Resolve runs the current resolver.
func (p *Policy) Resolve(container reflect.Type, m member.Ref, expr ast.Expr) (Name, error) {
	return p.Snapshot().Resolve(container, m, expr)
}

// Reset restores the defaults: no resolver, name caching enabled.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.Store(&Snapshot{})
}
