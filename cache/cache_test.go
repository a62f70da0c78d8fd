package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/Konsultn-Engineering/accessorcache/ast"
	"github.com/Konsultn-Engineering/accessorcache/compiler"
	"github.com/Konsultn-Engineering/accessorcache/displayname"
	"github.com/Konsultn-Engineering/accessorcache/member"
)

type Address struct {
	Line1 string
}

type Person struct {
	Id       int
	Surname  string
	Forename string
	Address  *Address
	Orders   []string
}

type Order struct {
	Id int
}

func doStuffToPerson(p Person) Person { return p }

func newCache(t *testing.T, opts ...Option) *AccessorCache {
	t.Helper()
	opts = append([]Option{WithLogger(testr.NewWithOptions(t, testr.Options{Verbosity: 1}))}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

// counting returns a resolver that answers "foo0", "foo1", ... and the
// number of times it ran.
func counting() (displayname.Resolver, *atomic.Int64) {
	var n atomic.Int64
	return displayname.ResolverFunc(func(reflect.Type, member.Ref, ast.Expr) (displayname.Name, error) {
		return displayname.Of(fmt.Sprintf("foo%d", n.Add(1)-1)), nil
	}), &n
}

func TestGetCachedAccessor_Gets(t *testing.T) {
	c := newCache(t)
	p := Person{Id: 1, Surname: "Foo", Address: &Address{Line1: "Street"}}

	acc, _, err := AccessorFor(c, ast.Path[Person, string]("x", "Surname"))
	require.NoError(t, err)
	v, err := acc.Get(p)
	require.NoError(t, err)
	assert.Equal(t, "Foo", v)

	nested, _, err := AccessorFor(c, ast.Path[Person, string]("x", "Address", "Line1"))
	require.NoError(t, err)
	v, err = nested.Get(p)
	require.NoError(t, err)
	assert.Equal(t, "Street", v)
}

func TestGetCachedAccessor_FirstCompilationWins(t *testing.T) {
	c := newCache(t)
	ref := member.Present(member.MustOf[Person]("Id"))

	first, _, err := GetCachedAccessor(c, ref, ast.Path[Person, int]("x", "Id"))
	require.NoError(t, err)

	// a different expression under the same member gets the stored accessor
	second, _, err := GetCachedAccessor(c, ref, ast.New[Person, int]("x", ast.Value(1)))
	require.NoError(t, err)
	assert.Same(t, first, second)

	v, err := second.Get(Person{Id: 42})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, StatsFor[Person](c).Entries)
}

func TestGetCachedAccessor_CachesDisplayName(t *testing.T) {
	c := newCache(t)
	resolver, calls := counting()
	c.Policy().SetResolver(resolver)
	c.Policy().SetDisableNameCaching(false)

	l := ast.Path[Person, string]("x", "Surname")
	_, first, err := AccessorFor(c, l)
	require.NoError(t, err)
	_, second, err := AccessorFor(c, l)
	require.NoError(t, err)

	assert.Equal(t, displayname.Of("foo0"), first)
	assert.Equal(t, displayname.Of("foo0"), second)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetCachedAccessor_CustomResolverDisablesNameCaching(t *testing.T) {
	c := newCache(t)
	resolver, calls := counting()
	c.Policy().SetResolver(resolver)

	l := ast.Path[Person, string]("x", "Surname")
	a, first, err := AccessorFor(c, l)
	require.NoError(t, err)
	b, second, err := AccessorFor(c, l)
	require.NoError(t, err)

	assert.True(t, first.IsNone())
	assert.True(t, second.IsNone())
	assert.EqualValues(t, 0, calls.Load())
	assert.NotSame(t, a, b)
	assert.Equal(t, 0, StatsFor[Person](c).Entries)
}

func TestGetCachedAccessor_CachesNoneName(t *testing.T) {
	c := newCache(t)
	var calls atomic.Int64
	c.Policy().SetResolver(displayname.ResolverFunc(func(reflect.Type, member.Ref, ast.Expr) (displayname.Name, error) {
		calls.Add(1)
		return displayname.None(), nil
	}))
	c.Policy().SetDisableNameCaching(false)

	l := ast.Path[Person, int]("x", "Id")
	for i := 0; i < 3; i++ {
		_, name, err := AccessorFor(c, l)
		require.NoError(t, err)
		assert.True(t, name.IsNone())
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetCachedAccessor_DefaultPolicyStoresWithoutName(t *testing.T) {
	c := newCache(t)
	_, name, err := AccessorFor(c, ast.Path[Person, int]("x", "Id"))
	require.NoError(t, err)
	assert.True(t, name.IsNone())
	assert.Equal(t, 1, StatsFor[Person](c).Entries)
}

func TestGetCachedAccessor_HumanizedName(t *testing.T) {
	c := newCache(t)
	c.Policy().SetResolver(displayname.Humanize())
	c.Policy().SetDisableNameCaching(false)

	_, name, err := AccessorFor(c, ast.Path[Person, string]("x", "Forename"))
	require.NoError(t, err)
	assert.Equal(t, displayname.Of("Forename"), name)

	_, name, err = AccessorFor(c, ast.Path[Person, string]("x", "Address", "Line1"))
	require.NoError(t, err)
	assert.Equal(t, displayname.Of("Line1"), name)
}

func TestGetCachedAccessor_AbsentIsNeverStored(t *testing.T) {
	c := newCache(t)
	resolver, calls := counting()
	c.Policy().SetResolver(resolver)
	c.Policy().SetDisableNameCaching(false)

	x := ast.P("x")
	l := ast.New[Person, string]("x", ast.Field(ast.Fn("doStuffToPerson", doStuffToPerson, x), "Surname"))
	require.True(t, member.Extract(l).IsAbsent())

	a, first, err := AccessorFor(c, l)
	require.NoError(t, err)
	b, second, err := AccessorFor(c, l)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, displayname.Of("foo0"), first)
	assert.Equal(t, displayname.Of("foo1"), second)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 0, StatsFor[Person](c).Entries)

	v, err := a.Get(Person{Surname: "Foo"})
	require.NoError(t, err)
	assert.Equal(t, "Foo", v)
}

func TestGetCachedAccessor_CompileErrorNotCached(t *testing.T) {
	c := newCache(t)
	ref := member.Present(member.MustOf[Person]("Surname"))

	_, _, err := GetCachedAccessor(c, ref, ast.New[Person, string]("x", ast.Field(ast.P("y"), "Surname")))
	assert.ErrorIs(t, err, compiler.ErrUnboundParameter)
	assert.Equal(t, 0, StatsFor[Person](c).Entries)

	acc, _, err := GetCachedAccessor(c, ref, ast.Path[Person, string]("x", "Surname"))
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, 1, StatsFor[Person](c).Entries)
}

func TestGetCachedAccessor_ResolverErrorNotCached(t *testing.T) {
	c := newCache(t)
	boom := errors.New("boom")
	var calls atomic.Int64
	c.Policy().SetResolver(displayname.ResolverFunc(func(reflect.Type, member.Ref, ast.Expr) (displayname.Name, error) {
		calls.Add(1)
		return displayname.None(), boom
	}))
	c.Policy().SetDisableNameCaching(false)

	l := ast.Path[Person, string]("x", "Surname")
	for i := 0; i < 2; i++ {
		acc, _, err := AccessorFor(c, l)
		assert.Same(t, boom, err)
		assert.Nil(t, acc)
	}
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 0, StatsFor[Person](c).Entries)
}

func TestGetCachedAccessor_ResultTypeMismatch(t *testing.T) {
	c := newCache(t)
	_, _, err := AccessorFor(c, ast.Path[Person, string]("x", "Surname"))
	require.NoError(t, err)

	_, _, err = AccessorFor(c, ast.Path[Person, any]("x", "Surname"))
	assert.ErrorIs(t, err, ErrAccessorType)
}

func TestClear(t *testing.T) {
	c := newCache(t)
	l := ast.Path[Person, int]("x", "Id")

	before, _, err := AccessorFor(c, l)
	require.NoError(t, err)
	epoch := StatsFor[Person](c).Epoch
	other, _, err := AccessorFor(c, ast.Path[Order, int]("x", "Id"))
	require.NoError(t, err)

	Clear[Person](c)

	stats := StatsFor[Person](c)
	assert.NotEqual(t, epoch, stats.Epoch)
	assert.Equal(t, 0, stats.Entries)

	after, _, err := AccessorFor(c, l)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.NotEqual(t, before.ID(), after.ID())

	// other model types are untouched
	again, _, err := AccessorFor(c, ast.Path[Order, int]("x", "Id"))
	require.NoError(t, err)
	assert.Same(t, other, again)

	// accessors handed out before the clear keep working
	v, err := before.Get(Person{Id: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestClear_UnseenType(t *testing.T) {
	c := newCache(t)
	Clear[Order](c)
	assert.Equal(t, 0, StatsFor[Order](c).Entries)
}

func TestClearAll(t *testing.T) {
	c := newCache(t)
	_, _, err := AccessorFor(c, ast.Path[Person, int]("x", "Id"))
	require.NoError(t, err)
	_, _, err = AccessorFor(c, ast.Path[Order, int]("x", "Id"))
	require.NoError(t, err)

	c.ClearAll()
	assert.Equal(t, 0, StatsFor[Person](c).Entries)
	assert.Equal(t, 0, StatsFor[Order](c).Entries)
}

func TestClear_MissInFlightDoesNotResurface(t *testing.T) {
	c := newCache(t)
	typ := reflect.TypeFor[Person]()
	l := ast.Path[Person, int]("x", "Id")
	ref := member.Extract(l)
	d, _ := ref.Get()

	// a miss that loaded its generation before a clear landed
	stale := c.store(typ).current()
	c.ClearType(typ)
	_, err := miss(c, typ, stale, ref, d, l)
	require.NoError(t, err)

	_, ok := c.store(typ).current().table.load(d)
	assert.False(t, ok)
	assert.Equal(t, 0, StatsFor[Person](c).Entries)
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New(WithCapacity(-1))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestCapacity_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, WithCapacity(2))

	id, _, err := AccessorFor(c, ast.Path[Person, int]("x", "Id"))
	require.NoError(t, err)
	_, _, err = AccessorFor(c, ast.Path[Person, string]("x", "Surname"))
	require.NoError(t, err)
	_, _, err = AccessorFor(c, ast.Path[Person, string]("x", "Forename"))
	require.NoError(t, err)

	stats := StatsFor[Person](c)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 2, stats.Capacity)

	recompiled, _, err := AccessorFor(c, ast.Path[Person, int]("x", "Id"))
	require.NoError(t, err)
	assert.NotSame(t, id, recompiled)
}

func TestConcurrentMisses_ShareOneAccessor(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"map", nil},
		{"coalesced", []Option{WithMissCoalescing()}},
		{"bounded coalesced", []Option{WithCapacity(8), WithMissCoalescing()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCache(t, tt.opts...)
			l := ast.Path[Person, string]("x", "Surname")

			const n = 32
			got := make([]*compiler.Accessor[Person, string], n)
			var g errgroup.Group
			for i := 0; i < n; i++ {
				g.Go(func() error {
					acc, _, err := AccessorFor(c, l)
					got[i] = acc
					return err
				})
			}
			require.NoError(t, g.Wait())

			for _, acc := range got[1:] {
				assert.Same(t, got[0], acc)
			}
			assert.Equal(t, 1, StatsFor[Person](c).Entries)
		})
	}
}

func TestConcurrentLookupsAndClears(t *testing.T) {
	c := newCache(t, WithMissCoalescing())
	l := ast.Path[Person, int]("x", "Id")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for i := 0; i < 100; i++ {
			Clear[Person](c)
		}
		return nil
	})
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < 200 && ctx.Err() == nil; i++ {
				acc, _, err := AccessorFor(c, l)
				if err != nil {
					return err
				}
				if v, err := acc.Get(Person{Id: i}); err != nil || v != i {
					return fmt.Errorf("got %d, %v", v, err)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	Clear[Person](c)
	a, _, err := AccessorFor(c, l)
	require.NoError(t, err)
	b, _, err := AccessorFor(c, l)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	c := newCache(t, WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))

	l := ast.Path[Person, int]("x", "Id")
	_, _, err := AccessorFor(c, l) // miss
	require.NoError(t, err)
	_, _, err = AccessorFor(c, l) // hit
	require.NoError(t, err)
	_, _, err = AccessorFor(c, ast.New[Person, int]("x", ast.Value(1))) // uncacheable
	require.NoError(t, err)
	_, _, err = AccessorFor(c, ast.Path[Person, int]("x", "Surname")) // miss, failure
	require.Error(t, err)
	Clear[Person](c)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.EqualValues(t, 1, counter(rm, "accessorcache.hits"))
	assert.EqualValues(t, 2, counter(rm, "accessorcache.misses"))
	assert.EqualValues(t, 1, counter(rm, "accessorcache.uncacheable"))
	assert.EqualValues(t, 1, counter(rm, "accessorcache.failures"))
	assert.EqualValues(t, 1, counter(rm, "accessorcache.clears"))
}

func counter(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestFlightKey(t *testing.T) {
	c := newCache(t)
	epoch := StatsFor[Person](c).Epoch
	id := member.MustOf[Person]("Id")
	surname := member.MustOf[Person]("Surname")
	fp := ast.Path[Person, int]("x", "Id").Fingerprint()

	assert.Equal(t, flightKey(epoch, fp, id), flightKey(epoch, fp, id))
	assert.NotEqual(t, flightKey(epoch, fp, id), flightKey(epoch, fp, surname))
	assert.NotEqual(t, flightKey(epoch, fp, id), flightKey(epoch, fp+1, id))

	Clear[Person](c)
	assert.NotEqual(t, flightKey(epoch, fp, id), flightKey(StatsFor[Person](c).Epoch, fp, id))
}

func TestCoalescedMiss_CompileErrorStaysWithItsCaller(t *testing.T) {
	c := newCache(t, WithMissCoalescing())
	ref := member.Present(member.MustOf[Person]("Surname"))
	valid := ast.Path[Person, string]("x", "Surname")
	invalid := ast.New[Person, string]("x", ast.Field(ast.P("y"), "Surname"))

	const n = 16
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if i%2 == 0 {
				// a hit on the entry stored by a valid caller is fine too
				_, _, err := GetCachedAccessor(c, ref, invalid)
				if err != nil && !errors.Is(err, compiler.ErrUnboundParameter) {
					return fmt.Errorf("invalid expression: got %v", err)
				}
				return nil
			}
			acc, _, err := GetCachedAccessor(c, ref, valid)
			if err != nil {
				return fmt.Errorf("valid expression: %w", err)
			}
			if v, err := acc.Get(Person{Surname: "Foo"}); err != nil || v != "Foo" {
				return fmt.Errorf("got %q, %v", v, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestGetCachedAccessor_AbsentResolvesWithCustomResolver(t *testing.T) {
	c := newCache(t)
	resolver, calls := counting()
	c.Policy().SetResolver(resolver)
	require.True(t, c.Policy().NameCachingDisabled())

	l := ast.New[Person, string]("x", ast.Field(ast.Fn("doStuffToPerson", doStuffToPerson, ast.P("x")), "Surname"))

	_, first, err := AccessorFor(c, l)
	require.NoError(t, err)
	_, second, err := AccessorFor(c, l)
	require.NoError(t, err)

	assert.Equal(t, displayname.Of("foo0"), first)
	assert.Equal(t, displayname.Of("foo1"), second)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 0, StatsFor[Person](c).Entries)
}

func TestGetCachedAccessor_HumanizedItemName(t *testing.T) {
	c := newCache(t)
	c.Policy().SetResolver(displayname.Humanize())

	l := ast.New[Person, string]("x", ast.At(ast.Field(ast.P("x"), "Orders"), ast.Value(0)))
	acc, name, err := AccessorFor(c, l)
	require.NoError(t, err)
	assert.Equal(t, displayname.Of("Order"), name)

	v, err := acc.Get(Person{Orders: []string{"first"}})
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}
