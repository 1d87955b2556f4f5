package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custos/internal/ledger/metrics"
	"custos/pkg/requestcontext"
)

// Sink receives a copy of every appended record after it is durably stored.
// Delivery is best-effort; the chain in the store is the source of truth.
type Sink interface {
	Announce(rec Record)
}

// Ledger serializes appends so the chain has a single total order. One
// mutex guards the read-last/compute/write sequence end to end; two
// concurrent appends can never both link to the same predecessor.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	sink    Sink
	metrics *metrics.Metrics
}

func New(store Store, m *metrics.Metrics) *Ledger {
	return &Ledger{store: store, metrics: m}
}

// SetSink attaches a post-append sink. Call before serving traffic.
func (l *Ledger) SetSink(sink Sink) { l.sink = sink }

// Append assigns the next sequence number, links the record to its
// predecessor, hashes it, and persists it. Once started, the append runs
// to completion even if the caller's context is cancelled mid-flight: a
// half-finished append would leave a decision without its audit record.
func (l *Ledger) Append(ctx context.Context, rec Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	if rec.Timestamp.IsZero() {
		rec.Timestamp = requestcontext.Now(ctx)
	}
	// TIMESTAMPTZ keeps microseconds; hash exactly what a store round trip
	// will hand back, or verification fails on the durable path.
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Microsecond)

	last, found, err := l.store.Last(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("read chain head: %w", err)
	}
	if found {
		rec.Sequence = last.Sequence + 1
		rec.PrevHash = last.EventHash
	} else {
		rec.Sequence = 1
		rec.PrevHash = GenesisHash
	}

	rec.EventHash, err = ComputeHash(rec)
	if err != nil {
		return Record{}, fmt.Errorf("hash ledger record: %w", err)
	}
	if err := l.store.Append(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("append ledger record: %w", err)
	}
	l.metrics.IncrementAppended(string(rec.EventType))

	if l.sink != nil {
		l.sink.Announce(rec)
	}
	return rec, nil
}

// List returns records matching the filter in chain order.
func (l *Ledger) List(ctx context.Context, filter Filter) ([]Record, error) {
	return l.store.List(ctx, filter)
}

// Verify re-derives the whole chain and reports the first break, if any.
func (l *Ledger) Verify(ctx context.Context) (VerifyReport, error) {
	records, err := l.store.List(ctx, Filter{})
	if err != nil {
		return VerifyReport{}, fmt.Errorf("load chain: %w", err)
	}
	report := VerifyChain(records)
	l.metrics.IncrementVerification(report.Valid)
	return report, nil
}
