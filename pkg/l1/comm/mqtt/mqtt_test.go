package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/picoload/pkg/l1/link"
)

func TestClientOptionsFromURL(t *testing.T) {
	testCases := []struct {
		url    string
		server string
		prefix string
		user   string
		pass   string
		id     string
	}{
		{"mqtt://localhost:1883", "tcp://localhost:1883", "", "", "", ""},
		{"mqtt://broker:1883/picoload", "tcp://broker:1883", "picoload/", "", "", ""},
		{"ws://u:p@broker:9001/a/b/?client-id=bench", "ws://broker:9001", "a/b/", "u", "p", "bench"},
		{"ssl://u@broker:8883/", "ssl://broker:8883", "", "u", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			opts, prefix, err := ClientOptionsFromURL(tc.url)
			require.NoError(t, err)
			require.Equal(t, tc.prefix, prefix)
			require.Len(t, opts.Servers, 1)
			require.Equal(t, tc.server, opts.Servers[0].String())
			require.Equal(t, tc.user, opts.Username)
			require.Equal(t, tc.pass, opts.Password)
			require.Equal(t, tc.id, opts.ClientID)
		})
	}

	_, _, err := ClientOptionsFromURL("mqtt://%zz")
	require.Error(t, err)
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type fakePubber struct {
	lock sync.Mutex
	msgs map[string][][]byte
	// tokens are returned in order when set.
	tokens []*fakeToken
}

func (p *fakePubber) Pub(topic string, payload []byte) paho.Token {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.msgs == nil {
		p.msgs = make(map[string][][]byte)
	}
	p.msgs[topic] = append(p.msgs[topic], payload)
	if len(p.tokens) > 0 {
		token := p.tokens[0]
		p.tokens = p.tokens[1:]
		return token
	}
	return &paho.DummyToken{}
}

func TestPublisher(t *testing.T) {
	q := &fakePubber{}
	pub := NewPublisher(q, "bench-1")
	require.Equal(t, "bench-1/rx", pub.Topic())

	chunks := [][]byte{{0x00, 0x01}, []byte("hello"), {}}
	for _, data := range chunks {
		require.NoError(t, pub.HandleChunk(context.Background(), link.Chunk{At: time.Now(), Data: data}))
	}
	msgs := q.msgs["bench-1/rx"]
	require.Len(t, msgs, len(chunks))
	for n, payload := range msgs {
		data, err := DecodeChunk(payload)
		require.NoError(t, err)
		require.Equalf(t, len(chunks[n]), len(data), "chunk[%d]", n)
		if len(data) > 0 {
			require.Equal(t, chunks[n], data)
		}
	}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func TestPublisherRunCountsFailures(t *testing.T) {
	q := &fakePubber{tokens: []*fakeToken{
		doneToken(nil),
		doneToken(errors.New("not authorized")),
		doneToken(nil),
	}}
	pub := NewPublisher(q, "s")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- pub.Run(ctx) }()

	for n := 0; n < 3; n++ {
		require.NoError(t, pub.HandleChunk(ctx, link.Chunk{At: time.Now(), Data: []byte{byte(n)}}))
	}
	deadline := time.Now().Add(time.Second)
	for pub.Failures() < 1 {
		require.True(t, time.Now().Before(deadline), "failure not counted")
		time.Sleep(time.Millisecond)
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, 1, pub.Failures())
	require.Equal(t, 0, pub.Untracked())
}

func TestPublisherStalledBroker(t *testing.T) {
	q := &fakePubber{}
	stalled := &fakeToken{done: make(chan struct{})}
	for n := 0; n < PublishBacklog+10; n++ {
		q.tokens = append(q.tokens, stalled)
	}
	pub := NewPublisher(q, "s")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- pub.Run(ctx) }()

	for n := 0; n < PublishBacklog+10; n++ {
		require.NoError(t, pub.HandleChunk(ctx, link.Chunk{At: time.Now(), Data: []byte{1}}))
	}
	require.Len(t, q.msgs["s/rx"], PublishBacklog+10)
	require.True(t, pub.Untracked() >= 9)

	// Run stops while waiting on a token that never completes.
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestWaitToken(t *testing.T) {
	require.NoError(t, WaitToken(doneToken(nil), time.Second))
	errDenied := errors.New("denied")
	require.Equal(t, errDenied, WaitToken(doneToken(errDenied), time.Second))
	stalled := &fakeToken{done: make(chan struct{})}
	require.Equal(t, ErrTokenTimeout, WaitToken(stalled, 10*time.Millisecond))
}

func TestStationTopic(t *testing.T) {
	require.Equal(t, "rx", StationTopic(""))
	require.Equal(t, "abc/rx", StationTopic("abc"))
}

func TestDecodeChunkInvalid(t *testing.T) {
	_, err := DecodeChunk([]byte{0x0a, 0x05, 0x01})
	require.Error(t, err)
}
