package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	channel string
	payload []byte
}

type fakeRedis struct {
	keys      map[string]time.Duration
	setNXErr  error
	published []published
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]time.Duration)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.setNXErr != nil {
		return redis.NewBoolResult(false, f.setNXErr)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	payload, _ := message.([]byte)
	f.published = append(f.published, published{channel: channel, payload: payload})
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error { return nil }

type stationAlert struct {
	StationID string `json:"stationId"`
	Status    string `json:"status"`
}

func (a stationAlert) DedupKey() string { return a.StationID + ":" + a.Status }

func TestRedisPublisherDeduplicatesAlerts(t *testing.T) {
	fake := newFakeRedis()
	p := newRedisPublisher(fake, zap.NewNop())
	ctx := context.Background()

	p.Publish(ctx, TopicStationAlert, stationAlert{StationID: "station-0", Status: "warning"})
	p.Publish(ctx, TopicStationAlert, stationAlert{StationID: "station-0", Status: "warning"})
	p.Publish(ctx, TopicStationAlert, stationAlert{StationID: "station-0", Status: "critical"})

	require.Len(t, fake.published, 2)
	assert.Equal(t, "stationos:station-alert", fake.published[0].channel)

	var got stationAlert
	require.NoError(t, json.Unmarshal(fake.published[1].payload, &got))
	assert.Equal(t, "critical", got.Status)

	assert.Equal(t, alertDedupTTL, fake.keys["stationos:dedup:station-alert:station-0:warning"])
}

func TestRedisPublisherPublishesPlainEvents(t *testing.T) {
	fake := newFakeRedis()
	p := newRedisPublisher(fake, zap.NewNop())

	p.Publish(context.Background(), TopicDecisionCreated, map[string]string{"id": "dec-1"})
	p.Publish(context.Background(), TopicDecisionCreated, map[string]string{"id": "dec-1"})

	assert.Len(t, fake.published, 2)
	assert.Empty(t, fake.keys)
}

func TestRedisPublisherDedupErrorStillPublishes(t *testing.T) {
	fake := newFakeRedis()
	fake.setNXErr = errors.New("connection refused")
	p := newRedisPublisher(fake, zap.NewNop())

	p.Publish(context.Background(), TopicStationAlert, stationAlert{StationID: "station-1", Status: "warning"})

	assert.Len(t, fake.published, 1)
}
