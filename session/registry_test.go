package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeConn() net.Conn {
	client, server := net.Pipe()
	_ = client
	return server
}

func TestLoginFreshID(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	now := time.Now()

	outcome, needsPurge, err := r.Login("alice", fakeConn(), now)
	require.NoError(t, err)
	assert.Equal(t, LoggedIn, outcome)
	assert.False(t, needsPurge)

	sock, ok := r.LiveSocket("alice")
	assert.True(t, ok)
	assert.NotNil(t, sock)
}

func TestLoginRefusedWhileLive(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	now := time.Now()

	_, _, err := r.Login("alice", fakeConn(), now)
	require.NoError(t, err)

	_, _, err = r.Login("alice", fakeConn(), now)
	assert.ErrorIs(t, err, ErrIDTaken)
}

func TestReconnectWithinGracePreservesSubscriptions(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	now := time.Now()

	_, _, err := r.Login("alice", fakeConn(), now)
	require.NoError(t, err)
	r.Disconnect("alice", now)

	outcome, needsPurge, err := r.Login("alice", fakeConn(), now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Reconnected, outcome)
	assert.False(t, needsPurge)
}

func TestReconnectAfterGraceNeedsPurge(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	now := time.Now()

	_, _, err := r.Login("alice", fakeConn(), now)
	require.NoError(t, err)
	r.Disconnect("alice", now)

	outcome, needsPurge, err := r.Login("alice", fakeConn(), now.Add(31*time.Second))
	require.NoError(t, err)
	assert.Equal(t, LoggedIn, outcome)
	assert.True(t, needsPurge)
}

func TestReapExpiredOnlyReapsStaleDisconnected(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	now := time.Now()

	_, _, err := r.Login("alice", fakeConn(), now)
	require.NoError(t, err)
	_, _, err = r.Login("bob", fakeConn(), now)
	require.NoError(t, err)

	r.Disconnect("alice", now)

	purged := r.ReapExpired(now.Add(31 * time.Second))
	assert.Equal(t, []string{"alice"}, purged)

	_, ok := r.Get("alice")
	assert.False(t, ok)
	_, ok = r.Get("bob")
	assert.True(t, ok)
}

func TestReapExpiredSkipsLiveSessions(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	now := time.Now()

	_, _, err := r.Login("alice", fakeConn(), now)
	require.NoError(t, err)

	purged := r.ReapExpired(now.Add(time.Hour))
	assert.Empty(t, purged)
}

func TestLiveSocketsSnapshot(t *testing.T) {
	r := NewRegistry(30 * time.Second)
	now := time.Now()

	_, _, err := r.Login("alice", fakeConn(), now)
	require.NoError(t, err)
	_, _, err = r.Login("bob", fakeConn(), now)
	require.NoError(t, err)
	r.Disconnect("bob", now)

	sockets := r.LiveSockets()
	assert.Len(t, sockets, 1)
}
