package cache

import (
	"context"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Konsultn-Engineering/accessorcache/cache"

type metrics struct {
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	uncacheable metric.Int64Counter
	failures    metric.Int64Counter
	clears      metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)
	m := &metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.hits, "accessorcache.hits", "Lookups served from the store"},
		{&m.misses, "accessorcache.misses", "Lookups that compiled a new accessor"},
		{&m.uncacheable, "accessorcache.uncacheable", "Lookups without a member descriptor"},
		{&m.failures, "accessorcache.failures", "Compile or display name resolution failures"},
		{&m.clears, "accessorcache.clears", "Store clears"},
	}
	for _, c := range counters {
		ctr, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("{lookup}"),
		)
		if err != nil {
			return nil, err
		}
		*c.dst = ctr
	}
	return m, nil
}

func (m *metrics) add(ctr metric.Int64Counter, t reflect.Type) {
	ctr.Add(context.Background(), 1, metric.WithAttributes(attribute.String("model.type", t.String())))
}
