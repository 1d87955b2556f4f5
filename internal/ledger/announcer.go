package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"custos/internal/ledger/metrics"
	"custos/pkg/platform/circuit"
)

// Announcer publishes appended records to a Kafka topic for downstream
// consumers (SIEM, compliance archive). It is strictly best-effort: the
// chain in the store is the source of truth, and a full buffer or a broker
// outage drops the announcement, never blocks the append path.
type Announcer struct {
	client  *kgo.Client
	topic   string
	buffer  chan Record
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const announceBufferSize = 256

func NewAnnouncer(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*Announcer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Announcer{
		client:  client,
		topic:   topic,
		buffer:  make(chan Record, announceBufferSize),
		breaker: circuit.New("ledger-announcer", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:  logger,
		metrics: m,
	}, nil
}

// Announce queues a record for publication. Non-blocking: when the buffer
// is full the record is dropped and counted.
func (a *Announcer) Announce(rec Record) {
	select {
	case a.buffer <- rec:
	default:
		a.metrics.IncrementAnnounceDrop()
	}
}

// Run drains the buffer until the context is cancelled. While the breaker
// is open, records are dropped without touching the broker; periodic
// produce attempts on the half-open path close it again.
func (a *Announcer) Run(ctx context.Context) error {
	defer a.client.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-a.buffer:
			a.publish(ctx, rec)
		}
	}
}

func (a *Announcer) publish(ctx context.Context, rec Record) {
	if a.breaker.IsOpen() {
		// Let one in ten through to probe broker recovery.
		if rec.Sequence%10 != 0 {
			a.metrics.IncrementAnnounceDrop()
			return
		}
	}

	value, err := json.Marshal(rec)
	if err != nil {
		a.logger.ErrorContext(ctx, "encode ledger announcement", "sequence", rec.Sequence, "error", err)
		return
	}
	kr := &kgo.Record{
		Topic: a.topic,
		Key:   []byte(strconv.FormatUint(rec.Sequence, 10)),
		Value: value,
	}
	if err := a.client.ProduceSync(ctx, kr).FirstErr(); err != nil {
		a.metrics.IncrementAnnounceDrop()
		if _, change := a.breaker.RecordFailure(); change.Opened {
			a.logger.WarnContext(ctx, "ledger announcer circuit opened", "error", err)
		}
		return
	}
	if _, change := a.breaker.RecordSuccess(); change.Closed {
		a.logger.InfoContext(ctx, "ledger announcer circuit closed")
	}
}
