package track

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher publishes generated track maps over MQTT. Every message is
// retained so late subscribers get the latest map.
type Publisher struct {
	client    mqtt.Client
	prefix    string
	qos       byte
	retain    bool
	timeout   time.Duration
	summaries map[string]Summary
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewPublisher creates a track map publisher. An empty prefix selects
// "trackmesh".
func NewPublisher(client mqtt.Client, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = "trackmesh"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:    client,
		prefix:    strings.TrimSuffix(prefix, "/"),
		qos:       1,
		retain:    true,
		timeout:   5 * time.Second,
		summaries: make(map[string]Summary),
		logger:    logger,
	}
}

// MapTopic returns the topic a track's full map is published on
func (p *Publisher) MapTopic(trackID string) string {
	return fmt.Sprintf("%s/%s/map", p.prefix, topicSegment(trackID))
}

// SummaryTopic returns the topic a track's summary is published on
func (p *Publisher) SummaryTopic(trackID string) string {
	return fmt.Sprintf("%s/%s/summary", p.prefix, topicSegment(trackID))
}

// IndexTopic returns the topic listing every published track
func (p *Publisher) IndexTopic() string {
	return p.prefix + "/tracks"
}

// topicSegment keeps MQTT wildcards and separators out of a topic level
func topicSegment(s string) string {
	if s == "" {
		return "track"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}

// PublishTrackMap publishes the full map, its summary and the updated index
func (p *Publisher) PublishTrackMap(tm *TrackMap) error {
	if tm == nil {
		return fmt.Errorf("track map is nil")
	}
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	payload, err := json.Marshal(tm)
	if err != nil {
		return fmt.Errorf("marshaling track map: %w", err)
	}
	if err := p.publish(p.MapTopic(tm.TrackID), payload); err != nil {
		return err
	}

	summary := tm.Summarize()
	payload, err = json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := p.publish(p.SummaryTopic(tm.TrackID), payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.summaries[tm.TrackID] = summary
	p.mu.Unlock()

	if err := p.publishIndex(); err != nil {
		return err
	}
	p.logger.Info("published track map",
		zap.String("trackId", tm.TrackID),
		zap.String("runId", tm.RunID),
		zap.Int("samples", tm.SampleCount))
	return nil
}

// publishIndex publishes the summaries of every track published so far
func (p *Publisher) publishIndex() error {
	p.mu.RLock()
	ids := make([]string, 0, len(p.summaries))
	for id := range p.summaries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	tracks := make([]Summary, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, p.summaries[id])
	}
	p.mu.RUnlock()

	message := map[string]interface{}{
		"tracks":    tracks,
		"timestamp": time.Now().Unix(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling track index: %w", err)
	}
	return p.publish(p.IndexTopic(), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publishing to %s: timeout after %v", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Summaries returns the summaries published so far, keyed by track id
func (p *Publisher) Summaries() map[string]Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Summary, len(p.summaries))
	for k, v := range p.summaries {
		out[k] = v
	}
	return out
}

// Configure applies the QoS and retain settings present in cfg
func (p *Publisher) Configure(cfg MQTTConfig) {
	if cfg.QoS != nil {
		p.SetQoS(*cfg.QoS)
	}
	if cfg.Retain != nil {
		p.SetRetain(*cfg.Retain)
	}
}

// SetQoS sets the QoS level for published messages
func (p *Publisher) SetQoS(qos byte) {
	p.qos = qos
}

// SetRetain sets whether messages should be retained
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
