package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random port
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestNATSPublisher_Core(t *testing.T) {
	server := startTestNATSServer(t)
	ctx := context.Background()

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("projectd.events", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := NewNATSPublisher(ctx, NATSConfig{URL: server.ClientURL(), Subject: "projectd.events"}, nil)
	require.NoError(t, err)
	defer pub.Close()

	em, err := NewEmitter(pub, EmitterConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, em.Emit(ctx, MemberAdded, MemberChange{ProjectID: "p1", UserID: "u2"}))

	select {
	case m := <-msgs:
		assert.Equal(t, "MemberAdded", m.Header.Get(HeaderMessageType))
		assert.NotEmpty(t, m.Header.Get(nats.MsgIdHdr))
		assert.Contains(t, string(m.Data), `"userId":"u2"`)
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestNATSPublisher_JetStreamDeduplicates(t *testing.T) {
	server := startTestNATSServer(t)
	ctx := context.Background()

	pub, err := NewNATSPublisher(ctx, NATSConfig{
		URL:       server.ClientURL(),
		Subject:   "projectd.events",
		JetStream: true,
		Stream:    "PROJECTD",
	}, nil)
	require.NoError(t, err)
	defer pub.Close()

	msg := Message{ID: "fixed-id", Type: ProjectCreated, Data: []byte(`{"messageId":"fixed-id"}`)}
	require.NoError(t, pub.Publish(ctx, msg))
	require.NoError(t, pub.Publish(ctx, msg))

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "PROJECTD")
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)
}

func TestNewNATSPublisher_Validation(t *testing.T) {
	_, err := NewNATSPublisher(context.Background(), NATSConfig{URL: "nats://127.0.0.1:1"}, nil)
	assert.Error(t, err)

	server := startTestNATSServer(t)
	_, err = NewNATSPublisher(context.Background(), NATSConfig{URL: server.ClientURL(), Subject: "s", JetStream: true}, nil)
	assert.Error(t, err, "jetstream requires a stream name")
}
