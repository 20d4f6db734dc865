// Package overlap reports lookups where more than one timezone polygon
// contains the query point. The first match still wins; reports exist so
// dataset errors can be found and fixed.
package overlap

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	h3 "github.com/uber/h3-go/v4"
)

// DefaultResolution groups overlaps into H3 cells of roughly 5 km².
const DefaultResolution = 7

type Event struct {
	Lat    float64   `json:"lat"`
	Lng    float64   `json:"lng"`
	Winner string    `json:"winner"`
	Zones  []string  `json:"zones"`
	Cell   string    `json:"h3_cell,omitempty"`
	TS     time.Time `json:"ts"`
}

// Reporter receives overlap events. Implementations must not block.
type Reporter interface {
	Report(ev Event)
}

// NewEvent builds an event for a point matched by every zone in zones,
// the first of which won. res < 0 leaves the cell empty.
func NewEvent(lat, lng float64, zones []string, res int) Event {
	ev := Event{
		Lat:   lat,
		Lng:   lng,
		Zones: append([]string(nil), zones...),
		TS:    time.Now().UTC(),
	}
	if len(zones) > 0 {
		ev.Winner = zones[0]
	}
	if res >= 0 {
		if cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res); err == nil {
			ev.Cell = cell.String()
		}
	}
	return ev
}

// Publisher sends events to Kafka through an async producer. Report never
// blocks: when the queue is full the event is dropped.
type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	log     *slog.Logger
	stopped chan struct{}
}

var _ Reporter = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("overlap: create async producer: %w", err)
	}
	return NewPublisherWithProducer(prod, topic, queueSize, log), nil
}

// NewPublisherWithProducer takes ownership of prod; Close closes it.
func NewPublisherWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		log:     log,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("overlap event marshal failed", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Cell),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("overlap producer error", "err", err)
			}
		}
	}()

	return p
}

func (p *Publisher) Report(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.log.Debug("overlap queue full; event dropped", "winner", ev.Winner)
	}
}

// Close flushes queued events and closes the producer. Report must not be
// called afterwards.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("overlap: close producer: %w", err)
	}
	return nil
}
