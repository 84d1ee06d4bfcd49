package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes/wrappers"

	"github.com/robotalks/picoload/pkg/l1/link"
)

// ErrTokenTimeout indicates the broker did not complete an operation in time.
var ErrTokenTimeout = errors.New("mqtt operation timeout")

// RxTopic is the topic (under station) carrying bytes received from the device.
const RxTopic = "rx"

// Pubber is the publishing half of Queue.
type Pubber interface {
	Pub(topic string, payload []byte) paho.Token
}

// Publisher republishes monitored chunks as BytesValue messages on
// <station>/rx. Run must be running to collect publish results.
type Publisher struct {
	Queue   Pubber
	Station string

	tokenCh   chan paho.Token
	failures  int64
	untracked int64
}

var _ link.ChunkHandler = (*Publisher)(nil)

const publishPoll = 100 * time.Millisecond

// PublishBacklog is the number of in-flight publishes Run tracks.
const PublishBacklog = 64

// NewPublisher creates Publisher.
func NewPublisher(q Pubber, station string) *Publisher {
	return &Publisher{Queue: q, Station: station, tokenCh: make(chan paho.Token, PublishBacklog)}
}

// Topic returns the topic chunks are published to.
func (p *Publisher) Topic() string {
	return StationTopic(p.Station)
}

// Failures counts publishes the broker did not acknowledge.
func (p *Publisher) Failures() int {
	return int(atomic.LoadInt64(&p.failures))
}

// Untracked counts publishes whose result was not checked because
// the backlog was full.
func (p *Publisher) Untracked() int {
	return int(atomic.LoadInt64(&p.untracked))
}

// HandleChunk implements link.ChunkHandler. It never waits for the
// broker: results are checked by Run.
func (p *Publisher) HandleChunk(ctx context.Context, c link.Chunk) error {
	payload, err := EncodeChunk(c.Data)
	if err != nil {
		return err
	}
	token := p.Queue.Pub(p.Topic(), payload)
	select {
	case p.tokenCh <- token:
	default:
		if atomic.AddInt64(&p.untracked, 1) == 1 {
			glog.Warningf("publish %s: broker is slow, some results unchecked", p.Topic())
		}
	}
	return nil
}

// Run implements framework.Runnable, waiting for publish results in
// order and logging failures.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case token := <-p.tokenCh:
			for !token.WaitTimeout(publishPoll) {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if token.Error() != nil {
				atomic.AddInt64(&p.failures, 1)
				glog.Warningf("publish %s: %v", p.Topic(), token.Error())
			}
		}
	}
}

// StationTopic returns the rx topic of a station.
func StationTopic(station string) string {
	if station == "" {
		return RxTopic
	}
	return station + "/" + RxTopic
}

// EncodeChunk encodes received bytes.
func EncodeChunk(data []byte) ([]byte, error) {
	return proto.Marshal(&wrappers.BytesValue{Value: data})
}

// DecodeChunk decodes a payload published by Publisher.
func DecodeChunk(payload []byte) ([]byte, error) {
	var msg wrappers.BytesValue
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	return msg.Value, nil
}

// Subscribe delivers chunks published for station to handler.
func Subscribe(q *Queue, station string, handler link.ChunkHandler) paho.Token {
	return q.Sub(StationTopic(station), func(topic string, payload []byte) {
		data, err := DecodeChunk(payload)
		if err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		if err := handler.HandleChunk(context.Background(), link.Chunk{At: time.Now(), Data: data}); err != nil {
			glog.Warningf("%s: %v", topic, err)
		}
	})
}
