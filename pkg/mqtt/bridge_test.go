package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rigsync/pkg/config"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/state"
)

type fakeRadio struct {
	mu    sync.Mutex
	snap  *state.Snapshot
	sets  map[string]string
	bands []string
	subs  []chan struct{}
}

func newFakeRadio() *fakeRadio {
	obs := state.NewObserved()
	obs.FreqMain = 14074000
	return &fakeRadio{
		snap: state.NewSnapshot(1, true, obs, 0, 0, nil),
		sets: make(map[string]string),
	}
}

func (r *fakeRadio) Snapshot() *state.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *fakeRadio) Subscribe() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{}, 1)
	r.subs = append(r.subs, ch)
	return ch
}

func (r *fakeRadio) Unsubscribe(<-chan struct{}) {}

func (r *fakeRadio) SubmitText(field, value string) error {
	if _, err := state.ParseField(field); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[field] = value
	return nil
}

func (r *fakeRadio) SetBand(name string) error {
	if name == "11m" {
		return errors.New("unknown band")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bands = append(r.bands, name)
	return nil
}

func (r *fakeRadio) setFreq(hz int64) {
	r.mu.Lock()
	obs := r.snap.Observed
	obs.FreqMain = hz
	r.snap = state.NewSnapshot(r.snap.Seq+1, true, obs, 0, 0, nil)
	subs := r.subs
	r.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (r *fakeRadio) set(field string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.sets[field]
	return v, ok
}

func testLogger() *logging.Logger {
	return logging.NewWriterLogger(io.Discard, logging.LevelDebug, false)
}

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return addr
}

// collect records messages the server routes to topic
func collect(t *testing.T, server *mochi.Server, topic string, id int) func() [][]byte {
	t.Helper()
	var mu sync.Mutex
	var got [][]byte
	require.NoError(t, server.Subscribe(topic, id, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, append([]byte(nil), pk.Payload...))
	}))
	return func() [][]byte {
		mu.Lock()
		defer mu.Unlock()
		return append([][]byte(nil), got...)
	}
}

func TestHandleSet(t *testing.T) {
	radio := newFakeRadio()
	b := &bridge{radio: radio, prefix: "rigsync", log: testLogger()}

	t.Run("Field", func(t *testing.T) {
		require.NoError(t, b.handleSet("rigsync/set/freq_main", []byte(" 7074000\n")))
		v, ok := radio.set("freq_main")
		assert.True(t, ok)
		assert.Equal(t, "7074000", v)
	})

	t.Run("Band", func(t *testing.T) {
		require.NoError(t, b.handleSet("rigsync/set/band", []byte("40m")))
		assert.Equal(t, []string{"40m"}, radio.bands)
	})

	t.Run("Wrong Prefix", func(t *testing.T) {
		assert.Error(t, b.handleSet("other/set/freq_main", []byte("1")))
	})

	t.Run("Unknown Field", func(t *testing.T) {
		assert.Error(t, b.handleSet("rigsync/set/bogus", []byte("1")))
	})
}

func TestPublishStateDeduplicates(t *testing.T) {
	radio := newFakeRadio()
	b := &bridge{radio: radio, prefix: "rigsync", log: testLogger()}

	var published []string
	pub := func(ctx context.Context, topic string, payload []byte, retain bool) error {
		assert.True(t, retain)
		published = append(published, topic)
		return nil
	}

	require.NoError(t, b.publishState(context.Background(), pub))
	require.NoError(t, b.publishState(context.Background(), pub))
	assert.Len(t, published, 1)

	radio.setFreq(7074000)
	require.NoError(t, b.publishState(context.Background(), pub))
	assert.Equal(t, []string{"rigsync/state", "rigsync/state"}, published)
}

func TestEmbedded(t *testing.T) {
	radio := newFakeRadio()
	cfg := config.MQTTConfig{Enabled: true, Mode: config.MQTTEmbedded, Address: freeAddress(t), TopicPrefix: "shack/"}

	br, err := New(cfg, radio, testLogger())
	require.NoError(t, err)
	emb, ok := br.(*Embedded)
	require.True(t, ok)

	states := collect(t, emb.server, "shack/state", 10)
	errs := collect(t, emb.server, "shack/error", 11)

	require.NoError(t, br.Start(context.Background()))
	defer br.Stop()

	t.Run("State Published", func(t *testing.T) {
		require.Eventually(t, func() bool { return len(states()) >= 1 }, 2*time.Second, 10*time.Millisecond)

		radio.setFreq(7074000)
		require.Eventually(t, func() bool { return len(states()) >= 2 }, 2*time.Second, 10*time.Millisecond)

		msgs := states()
		var payload statePayload
		require.NoError(t, json.Unmarshal(msgs[len(msgs)-1], &payload))
		assert.Equal(t, int64(7074000), payload.Observed.FreqMain)
		assert.Equal(t, "40m", payload.Band)
	})

	t.Run("Set Routed To Radio", func(t *testing.T) {
		require.NoError(t, emb.server.Publish("shack/set/mode_main", []byte("CW"), false, 0))
		require.Eventually(t, func() bool {
			v, ok := radio.set("mode_main")
			return ok && v == "CW"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Rejected Set Reported", func(t *testing.T) {
		require.NoError(t, emb.server.Publish("shack/set/band", []byte("11m"), false, 0))
		require.Eventually(t, func() bool { return len(errs()) == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Contains(t, string(errs()[0]), "unknown band")
	})
}

func TestExternal(t *testing.T) {
	addr := freeAddress(t)
	server := mochi.New(&mochi.Options{InlineClient: true})
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})))
	require.NoError(t, server.Serve())
	defer server.Close()

	states := collect(t, server, "rigsync/state", 20)

	radio := newFakeRadio()
	cfg := config.MQTTConfig{Enabled: true, Mode: config.MQTTExternal, Broker: addr, ClientID: "rigsync-test"}
	br, err := New(cfg, radio, testLogger())
	require.NoError(t, err)
	require.NoError(t, br.Start(context.Background()))
	defer br.Stop()

	require.Eventually(t, func() bool { return len(states()) >= 1 }, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		server.Publish("rigsync/set/agc", []byte("fast"), false, 0)
		v, ok := radio.set("agc")
		return ok && v == "fast"
	}, 5*time.Second, 100*time.Millisecond)
}

func TestUnknownMode(t *testing.T) {
	_, err := New(config.MQTTConfig{Mode: "carrier-pigeon"}, newFakeRadio(), testLogger())
	assert.Error(t, err)
}
