package telemetry

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicelabel-core/internal/matching"
)

// Measurement is the InfluxDB measurement for resolution points.
const Measurement = "template_match"

// outcome tag values
const (
	outcomeMatched    = "matched"
	outcomeNoTemplate = "no_templates"
	outcomeError      = "error"
)

// PointWriter queues a point. influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// InfluxObserver records resolutions as InfluxDB points tagged by tenant,
// reason, outcome and cache hit.
type InfluxObserver struct {
	w   PointWriter
	now func() time.Time
}

// NewInfluxObserver creates an observer writing through w.
func NewInfluxObserver(w PointWriter) *InfluxObserver {
	return &InfluxObserver{w: w, now: time.Now}
}

// ObserveMatch implements matching.Observer.
func (o *InfluxObserver) ObserveMatch(_ context.Context, obs matching.Observation) {
	tags := map[string]string{
		"tenant_id": obs.TenantID,
		"outcome":   outcome(obs.Err),
		"cache_hit": strconv.FormatBool(obs.CacheHit),
	}
	fields := map[string]any{
		"duration_us": obs.Duration.Microseconds(),
	}
	if obs.Err == nil {
		tags["reason"] = string(obs.Result.Reason)
		fields["confidence"] = obs.Result.Confidence
		fields["template_id"] = obs.Result.Template.ID
	}
	o.w.WritePointWithTime(Measurement, tags, fields, o.now())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeMatched
	case errors.Is(err, matching.ErrNoTemplatesAvailable):
		return outcomeNoTemplate
	default:
		return outcomeError
	}
}

// Publisher publishes JSON to a topic. mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, qos byte, retained bool) error
}

// MatchEvent is the payload of devicelabel/match/{tenant}/resolved.
type MatchEvent struct {
	TenantID     string          `json:"tenant_id"`
	Serial       string          `json:"serial,omitempty"`
	Model        string          `json:"model"`
	ProductType  string          `json:"product_type,omitempty"`
	TemplateID   int64           `json:"template_id,omitempty"`
	TemplateName string          `json:"template_name,omitempty"`
	Reason       matching.Reason `json:"reason,omitempty"`
	Confidence   float64         `json:"confidence,omitempty"`
	CacheHit     bool            `json:"cache_hit"`
	Error        string          `json:"error,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// DefaultQueueSize is the MQTT observer's buffer when none is given.
const DefaultQueueSize = 256

// MQTTObserver publishes resolutions from a single background goroutine.
// ObserveMatch never blocks: when the queue is full the event is dropped
// and counted.
type MQTTObserver struct {
	pub     Publisher
	qos     byte
	queue   chan MatchEvent
	logger  Logger
	now     func() time.Time
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMQTTObserver starts the publishing goroutine. Call Close to stop it.
func NewMQTTObserver(pub Publisher, qos byte, queueSize int) *MQTTObserver {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	o := &MQTTObserver{
		pub:    pub,
		qos:    qos,
		queue:  make(chan MatchEvent, queueSize),
		logger: noopLogger{},
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go o.run()
	return o
}

// SetLogger sets the logger for publish failures. Call before the first event.
func (o *MQTTObserver) SetLogger(logger Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// ObserveMatch implements matching.Observer.
func (o *MQTTObserver) ObserveMatch(_ context.Context, obs matching.Observation) {
	ev := MatchEvent{
		TenantID:    obs.TenantID,
		Serial:      obs.Device.Serial,
		Model:       obs.Device.Model,
		ProductType: obs.Device.ProductType,
		CacheHit:    obs.CacheHit,
		Timestamp:   o.now().UTC(),
	}
	if obs.Err != nil {
		ev.Error = obs.Err.Error()
	} else {
		ev.TemplateID = obs.Result.Template.ID
		ev.TemplateName = obs.Result.Template.Name
		ev.Reason = obs.Result.Reason
		ev.Confidence = obs.Result.Confidence
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.dropped.Add(1)
		return
	}
	select {
	case o.queue <- ev:
	default:
		o.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (o *MQTTObserver) Dropped() uint64 {
	return o.dropped.Load()
}

// Close stops accepting events, publishes what is queued and waits.
func (o *MQTTObserver) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	<-o.done
}

func (o *MQTTObserver) run() {
	defer close(o.done)
	for ev := range o.queue {
		if err := o.pub.PublishJSON(mqtt.Topics{}.MatchResolved(ev.TenantID), ev, o.qos, false); err != nil {
			o.logger.Warn("match event publish failed", "tenant_id", ev.TenantID, "error", err)
		}
	}
}

// Fanout forwards every observation to each non-nil observer in order.
type Fanout []matching.Observer

// NewFanout drops nil entries.
func NewFanout(observers ...matching.Observer) Fanout {
	f := make(Fanout, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			f = append(f, o)
		}
	}
	return f
}

// ObserveMatch implements matching.Observer.
func (f Fanout) ObserveMatch(ctx context.Context, obs matching.Observation) {
	for _, o := range f {
		o.ObserveMatch(ctx, obs)
	}
}
