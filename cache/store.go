package cache

import (
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Konsultn-Engineering/accessorcache/displayname"
	"github.com/Konsultn-Engineering/accessorcache/member"
)

// entry is immutable once published.
type entry struct {
	accessor any // *compiler.Accessor[T, P]
	name     displayname.Name
}

// table maps descriptors to entries for one model type.
type table interface {
	load(d member.Descriptor) (*entry, bool)
	// loadOrStore returns the existing entry if there is one, otherwise
	// stores e and returns it.
	loadOrStore(d member.Descriptor, e *entry) (actual *entry, loaded bool)
	len() int
}

type mapTable struct {
	m *xsync.MapOf[member.Descriptor, *entry]
}

func newMapTable() table {
	return &mapTable{m: xsync.NewMapOf[member.Descriptor, *entry]()}
}

func (t *mapTable) load(d member.Descriptor) (*entry, bool) {
	return t.m.Load(d)
}

func (t *mapTable) loadOrStore(d member.Descriptor, e *entry) (*entry, bool) {
	return t.m.LoadOrStore(d, e)
}

func (t *mapTable) len() int {
	return t.m.Size()
}

// lruTable is the bounded variant. The lru cache does its own locking.
type lruTable struct {
	c *lru.Cache[member.Descriptor, *entry]
}

func newLRUTable(size int) (table, error) {
	c, err := lru.New[member.Descriptor, *entry](size)
	if err != nil {
		return nil, err
	}
	return &lruTable{c: c}, nil
}

func (t *lruTable) load(d member.Descriptor) (*entry, bool) {
	return t.c.Get(d)
}

func (t *lruTable) loadOrStore(d member.Descriptor, e *entry) (*entry, bool) {
	if prev, ok, _ := t.c.PeekOrAdd(d, e); ok {
		return prev, true
	}
	return e, false
}

func (t *lruTable) len() int {
	return t.c.Len()
}

// generation is one lifetime of a store, between two clears.
type generation struct {
	epoch uuid.UUID
	table table
}

// typeStore is the per-model-type store. Clearing publishes a fresh
// generation; a miss that loaded the old generation writes into the old
// table, which nobody reads any more.
type typeStore struct {
	typ      reflect.Type
	newTable func() table
	cur      atomic.Pointer[generation]
}

func newTypeStore(t reflect.Type, newTable func() table) *typeStore {
	s := &typeStore{typ: t, newTable: newTable}
	s.clear()
	return s
}

func (s *typeStore) current() *generation {
	return s.cur.Load()
}

func (s *typeStore) clear() uuid.UUID {
	g := &generation{epoch: uuid.New(), table: s.newTable()}
	s.cur.Store(g)
	return g.epoch
}
