package track

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedMock() *MockClient {
	mock := NewMockClient()
	mock.SetConnected(true)
	return mock
}

func TestPublisher_Topics(t *testing.T) {
	p := NewPublisher(nil, "karts/", nil)
	assert.Equal(t, "karts/monza/map", p.MapTopic("monza"))
	assert.Equal(t, "karts/monza/summary", p.SummaryTopic("monza"))
	assert.Equal(t, "karts/tracks", p.IndexTopic())

	assert.Equal(t, "trackmesh/tracks", NewPublisher(nil, "", nil).IndexTopic())
}

func TestTopicSegment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"monza", "monza"},
		{"", "track"},
		{"a/b", "a_b"},
		{"x+y#z", "x_y_z"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, topicSegment(tt.in), "segment %q", tt.in)
	}
}

func TestPublisher_PublishTrackMap(t *testing.T) {
	mock := connectedMock()
	p := NewPublisher(mock, "trackmesh", nil)
	tm := sampleTrackMap(t)

	require.NoError(t, p.PublishTrackMap(tm))

	msgs := mock.GetPublishedMessages()
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, byte(1), m.QoS)
		assert.True(t, m.Retain)
	}

	m, ok := mock.LastMessage("trackmesh/ring/map")
	require.True(t, ok)
	var published TrackMap
	require.NoError(t, json.Unmarshal(m.Payload, &published))
	assert.Equal(t, tm.RunID, published.RunID)
	assert.Len(t, published.Centerline, tm.SampleCount)

	m, ok = mock.LastMessage("trackmesh/ring/summary")
	require.True(t, ok)
	var summary Summary
	require.NoError(t, json.Unmarshal(m.Payload, &summary))
	assert.Equal(t, tm.Summarize(), summary)

	m, ok = mock.LastMessage("trackmesh/tracks")
	require.True(t, ok)
	var index struct {
		Tracks    []Summary `json:"tracks"`
		Timestamp int64     `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(m.Payload, &index))
	require.Len(t, index.Tracks, 1)
	assert.Equal(t, "ring", index.Tracks[0].TrackID)
	assert.Positive(t, index.Timestamp)
}

func TestPublisher_IndexListsEveryTrack(t *testing.T) {
	mock := connectedMock()
	p := NewPublisher(mock, "trackmesh", nil)

	second := sampleTrackMap(t)
	second.TrackID = "alpha"
	require.NoError(t, p.PublishTrackMap(sampleTrackMap(t)))
	require.NoError(t, p.PublishTrackMap(second))

	m, ok := mock.LastMessage(p.IndexTopic())
	require.True(t, ok)
	var index struct {
		Tracks []Summary `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(m.Payload, &index))
	require.Len(t, index.Tracks, 2)
	assert.Equal(t, "alpha", index.Tracks[0].TrackID)
	assert.Equal(t, "ring", index.Tracks[1].TrackID)
	assert.Len(t, p.Summaries(), 2)
}

func TestPublisher_Errors(t *testing.T) {
	tm := sampleTrackMap(t)

	err := NewPublisher(NewMockClient(), "", nil).PublishTrackMap(tm)
	assert.EqualError(t, err, "MQTT client not connected")

	assert.EqualError(t, NewPublisher(connectedMock(), "", nil).PublishTrackMap(nil), "track map is nil")

	mock := connectedMock()
	mock.SetPublishError(errors.New("quota exceeded"))
	err = NewPublisher(mock, "", nil).PublishTrackMap(tm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing to trackmesh/ring/map")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPublisher_Configure(t *testing.T) {
	qos := byte(2)
	retain := false
	tests := []struct {
		name       string
		cfg        MQTTConfig
		wantQoS    byte
		wantRetain bool
	}{
		{"defaults", MQTTConfig{}, 1, true},
		{"qos only", MQTTConfig{QoS: &qos}, 2, true},
		{"both", MQTTConfig{QoS: &qos, Retain: &retain}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := connectedMock()
			p := NewPublisher(mock, "", nil)
			p.Configure(tt.cfg)
			require.NoError(t, p.PublishTrackMap(sampleTrackMap(t)))
			for _, m := range mock.GetPublishedMessages() {
				assert.Equal(t, tt.wantQoS, m.QoS)
				assert.Equal(t, tt.wantRetain, m.Retain)
			}
		})
	}
}

func TestPublisher_QoSAndRetain(t *testing.T) {
	mock := connectedMock()
	p := NewPublisher(mock, "", nil)
	p.SetQoS(0)
	p.SetRetain(false)
	require.NoError(t, p.PublishTrackMap(sampleTrackMap(t)))
	for _, m := range mock.GetPublishedMessages() {
		assert.Equal(t, byte(0), m.QoS)
		assert.False(t, m.Retain)
	}
}
