package broker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgbroker/broker/wire"
)

func testBroker() *Broker {
	logger := zerolog.Nop()
	return New(Config{
		GraceWindow:       30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ReadTimeout:       0,
		MaxPayloadBytes:   wire.MaxPayload,
	}, &logger)
}

func readAck(t *testing.T, conn net.Conn) (wire.Header, []byte) {
	t.Helper()
	hdr, payload, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	return hdr, payload
}

func TestLoginFreshClientReceivesCatalog(t *testing.T) {
	b := testBroker()
	client, server := net.Pipe()
	defer client.Close()

	go b.handleConn(context.Background(), server, uuid.New())

	require.NoError(t, wire.WriteFrame(client, wire.RoleLogin, wire.ActionLogin, []byte("alice")))

	hdr, payload := readAck(t, client)
	assert.Equal(t, wire.TypeLogin, hdr.Type())
	assert.Equal(t, wire.ReasonLoggedIn, string(payload))

	hdr, payload = readAck(t, client)
	assert.Equal(t, wire.TypeInitial, hdr.Type())
	names, err := wire.DecodeQueueList(payload)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLoginTooShortIDStaysInLoginState(t *testing.T) {
	b := testBroker()
	client, server := net.Pipe()
	defer client.Close()

	go b.handleConn(context.Background(), server, uuid.New())

	require.NoError(t, wire.WriteFrame(client, wire.RoleLogin, wire.ActionLogin, []byte("a")))
	_, payload := readAck(t, client)
	assert.Equal(t, wire.ReasonIDTooShort, string(payload))

	require.NoError(t, wire.WriteFrame(client, wire.RoleLogin, wire.ActionLogin, []byte("alice")))
	_, payload = readAck(t, client)
	assert.Equal(t, wire.ReasonLoggedIn, string(payload))
}

func TestNonLoginFrameBeforeLoginIsRefused(t *testing.T) {
	b := testBroker()
	client, server := net.Pipe()
	defer client.Close()

	go b.handleConn(context.Background(), server, uuid.New())

	require.NoError(t, wire.WriteFrame(client, wire.RoleHeartbeat, wire.ActionHeartbeat, nil))
	_, payload := readAck(t, client)
	assert.Equal(t, wire.ReasonFirstLogin, string(payload))
}

func loginClient(t *testing.T, b *Broker, id string) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go b.handleConn(context.Background(), server, uuid.New())
	require.NoError(t, wire.WriteFrame(client, wire.RoleLogin, wire.ActionLogin, []byte(id)))
	readAck(t, client) // login reply
	readAck(t, client) // initial catalog
	return client
}

func TestSecondLoginAfterSuccessIsRejected(t *testing.T) {
	b := testBroker()
	client := loginClient(t, b, "alice")
	defer client.Close()

	require.NoError(t, wire.WriteFrame(client, wire.RoleLogin, wire.ActionLogin, []byte("alice")))
	_, payload := readAck(t, client)
	assert.Equal(t, wire.ReasonAlreadyLoggedIn, string(payload))
}

func TestCreateSubscribePublishMulticastFlow(t *testing.T) {
	b := testBroker()
	alice := loginClient(t, b, "alice")
	defer alice.Close()

	require.NoError(t, wire.WriteFrame(alice, wire.RoleQueue, wire.ActionCreate, []byte("jobs")))
	_, payload := readAck(t, alice) // create ack
	assert.Equal(t, wire.StatusOK, string(payload))
	_, payload = readAck(t, alice) // QL broadcast to alice (only live socket)
	names, err := wire.DecodeQueueList(payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs"}, names)

	require.NoError(t, wire.WriteFrame(alice, wire.RoleSub, wire.ActionSub, []byte("jobs")))
	_, payload = readAck(t, alice)
	assert.Equal(t, wire.StatusOK, string(payload))

	require.NoError(t, wire.WriteFrame(alice, wire.RoleQueue, wire.ActionPublish,
		wire.EncodePublish("jobs", 60, []byte("hello"))))
	_, payload = readAck(t, alice) // publish ack
	assert.Equal(t, wire.StatusOK, string(payload))

	hdr, payload := readAck(t, alice) // MS multicast back to the subscriber itself
	assert.Equal(t, wire.TypeMessage, hdr.Type())
	mc, err := wire.DecodeMulticast(payload)
	require.NoError(t, err)
	assert.Equal(t, "jobs", mc.Name)
	assert.Equal(t, []byte("hello"), mc.Text)
}

// TestPublishOrderPreservedAcrossPublishesToSharedSubscriber exercises P4
// (§8): two publishes to the same queue must be delivered to a shared live
// subscriber in publish order. This previously broke when multicast sends
// were dispatched to a multi-worker pool instead of sent synchronously.
func TestPublishOrderPreservedAcrossPublishesToSharedSubscriber(t *testing.T) {
	b := testBroker()
	alice := loginClient(t, b, "alice")
	defer alice.Close()

	require.NoError(t, wire.WriteFrame(alice, wire.RoleQueue, wire.ActionCreate, []byte("jobs")))
	readAck(t, alice) // create ack
	readAck(t, alice) // QL broadcast

	require.NoError(t, wire.WriteFrame(alice, wire.RoleSub, wire.ActionSub, []byte("jobs")))
	readAck(t, alice) // subscribe ack

	bob := loginClient(t, b, "bob")
	defer bob.Close()

	require.NoError(t, wire.WriteFrame(bob, wire.RoleQueue, wire.ActionPublish,
		wire.EncodePublish("jobs", 60, []byte("first"))))
	_, payload := readAck(t, bob) // publish ack
	assert.Equal(t, wire.StatusOK, string(payload))
	_, payload = readAck(t, alice) // MS for "first"
	mc, err := wire.DecodeMulticast(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), mc.Text)

	require.NoError(t, wire.WriteFrame(bob, wire.RoleQueue, wire.ActionPublish,
		wire.EncodePublish("jobs", 60, []byte("second"))))
	_, payload = readAck(t, bob) // publish ack
	assert.Equal(t, wire.StatusOK, string(payload))
	_, payload = readAck(t, alice) // MS for "second"
	mc, err = wire.DecodeMulticast(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), mc.Text)
}

func TestSubscribeToMissingQueue(t *testing.T) {
	b := testBroker()
	alice := loginClient(t, b, "alice")
	defer alice.Close()

	require.NoError(t, wire.WriteFrame(alice, wire.RoleSub, wire.ActionSub, []byte("ghost")))
	_, payload := readAck(t, alice)
	assert.Equal(t, wire.ReasonNoQueue, string(payload))
}

func TestDeleteQueueNotifiesSubscriber(t *testing.T) {
	b := testBroker()
	alice := loginClient(t, b, "alice")
	defer alice.Close()

	require.NoError(t, wire.WriteFrame(alice, wire.RoleQueue, wire.ActionCreate, []byte("jobs")))
	readAck(t, alice) // create ack
	readAck(t, alice) // QL broadcast

	require.NoError(t, wire.WriteFrame(alice, wire.RoleSub, wire.ActionSub, []byte("jobs")))
	readAck(t, alice) // subscribe ack

	require.NoError(t, wire.WriteFrame(alice, wire.RoleQueue, wire.ActionDelete, []byte("jobs")))
	_, payload := readAck(t, alice) // delete ack
	assert.Equal(t, wire.StatusOK, string(payload))

	hdr, payload := readAck(t, alice) // ND notice
	assert.Equal(t, wire.TypeNotice, hdr.Type())
	assert.Equal(t, "jobs", string(payload))

	readAck(t, alice) // QL broadcast (now empty)
}
