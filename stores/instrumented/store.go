// Package instrumented wraps a core.PersonStore with Prometheus metrics.
package instrumented

import (
	"context"
	"errors"
	"people-store/core"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "people_store_operations_total",
			Help: "Store operations by outcome",
		}, []string{"operation", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "people_store_operation_duration_seconds",
			Help:    "Store operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Register registers the metrics on reg (or the default registerer if nil).
// Collectors that are already registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.Operations, m.Duration} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

type Store struct {
	next    core.PersonStore
	metrics *Metrics
}

func New(next core.PersonStore, metrics *Metrics) *Store {
	return &Store{next: next, metrics: metrics}
}

func (s *Store) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, core.ErrValidation):
		result = "invalid"
	case errors.Is(err, core.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	s.metrics.Operations.WithLabelValues(op, result).Inc()
	s.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *Store) Create(ctx context.Context, person *core.Person) (out *core.Person, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())
	return s.next.Create(ctx, person)
}

func (s *Store) CreateMany(ctx context.Context, people []core.Person) (out []core.Person, err error) {
	defer func(start time.Time) { s.observe("create_many", start, err) }(time.Now())
	return s.next.CreateMany(ctx, people)
}

func (s *Store) FindID(ctx context.Context, id string) (out *core.Person, err error) {
	defer func(start time.Time) { s.observe("find_id", start, err) }(time.Now())
	return s.next.FindID(ctx, id)
}

func (s *Store) Find(ctx context.Context, query core.Query) (out []core.Person, err error) {
	defer func(start time.Time) { s.observe("find", start, err) }(time.Now())
	return s.next.Find(ctx, query)
}

func (s *Store) FindOne(ctx context.Context, query core.Query) (out *core.Person, err error) {
	defer func(start time.Time) { s.observe("find_one", start, err) }(time.Now())
	return s.next.FindOne(ctx, query)
}

func (s *Store) Save(ctx context.Context, person *core.Person) (out *core.Person, err error) {
	defer func(start time.Time) { s.observe("save", start, err) }(time.Now())
	return s.next.Save(ctx, person)
}

func (s *Store) FindOneAndUpdate(ctx context.Context, query core.Query, update core.Update) (out *core.Person, err error) {
	defer func(start time.Time) { s.observe("find_one_and_update", start, err) }(time.Now())
	return s.next.FindOneAndUpdate(ctx, query, update)
}

func (s *Store) DeleteID(ctx context.Context, id string) (out *core.Person, err error) {
	defer func(start time.Time) { s.observe("delete_id", start, err) }(time.Now())
	return s.next.DeleteID(ctx, id)
}

func (s *Store) DeleteMany(ctx context.Context, query core.Query) (out *core.DeleteResult, err error) {
	defer func(start time.Time) { s.observe("delete_many", start, err) }(time.Now())
	return s.next.DeleteMany(ctx, query)
}

func (s *Store) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
