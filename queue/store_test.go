package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndDuplicateCreate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("jobs"))
	assert.ErrorIs(t, s.Create("jobs"), ErrAlreadyExists)
}

func TestDeleteReturnsSubscribersAndRemovesQueue(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("jobs"))
	require.NoError(t, s.Subscribe("jobs", "alice"))
	require.NoError(t, s.Subscribe("jobs", "bob"))

	ids, err := s.Delete("jobs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)

	_, err = s.Delete("jobs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeUnsubscribeLifecycle(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("jobs"))

	assert.ErrorIs(t, s.Subscribe("missing", "alice"), ErrNotFound)
	require.NoError(t, s.Subscribe("jobs", "alice"))
	assert.ErrorIs(t, s.Subscribe("jobs", "alice"), ErrAlreadySubscribed)

	assert.ErrorIs(t, s.Unsubscribe("missing", "alice"), ErrNotFound)
	require.NoError(t, s.Unsubscribe("jobs", "alice"))
	assert.ErrorIs(t, s.Unsubscribe("jobs", "alice"), ErrNotSubscribed)
}

func TestPublishFansOutToCurrentSubscribers(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("jobs"))
	require.NoError(t, s.Subscribe("jobs", "alice"))

	ids, err := s.Publish("jobs", []byte("hi"), 60, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)

	_, err = s.Publish("missing", []byte("hi"), 60, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotIsSortedAndStable(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("zeta"))
	require.NoError(t, s.Create("alpha"))
	require.NoError(t, s.Create("mid"))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.Snapshot())
}

func TestDrainRetainedOrderAndExpiry(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("jobs"))
	now := time.Now()

	_, err := s.Publish("jobs", []byte("first"), 60, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = s.Publish("jobs", []byte("second"), 60, now)
	require.NoError(t, err)

	out, err := s.DrainRetained("jobs", now)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("second"), out[0])

	_, err = s.DrainRetained("missing", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDrainRetainedPreservesPublishOrder(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("jobs"))
	now := time.Now()

	_, err := s.Publish("jobs", []byte("one"), 60, now)
	require.NoError(t, err)
	_, err = s.Publish("jobs", []byte("two"), 60, now)
	require.NoError(t, err)
	_, err = s.Publish("jobs", []byte("three"), 60, now)
	require.NoError(t, err)

	out, err := s.DrainRetained("jobs", now)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, out)
}

func TestEvictExpiredSweepsAllQueues(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("a"))
	require.NoError(t, s.Create("b"))
	now := time.Now()

	_, err := s.Publish("a", []byte("stale"), 60, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = s.Publish("b", []byte("fresh"), 60, now)
	require.NoError(t, err)

	dropped := s.EvictExpired(now)
	assert.Equal(t, 1, dropped)

	outA, err := s.DrainRetained("a", now)
	require.NoError(t, err)
	assert.Empty(t, outA)

	outB, err := s.DrainRetained("b", now)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("fresh")}, outB)
}

func TestPurgeSubscriberRemovesFromEveryQueue(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("a"))
	require.NoError(t, s.Create("b"))
	require.NoError(t, s.Subscribe("a", "alice"))
	require.NoError(t, s.Subscribe("b", "alice"))
	require.NoError(t, s.Subscribe("b", "bob"))

	s.PurgeSubscriber("alice")

	assert.ErrorIs(t, s.Unsubscribe("a", "alice"), ErrNotSubscribed)
	assert.ErrorIs(t, s.Unsubscribe("b", "alice"), ErrNotSubscribed)
	require.NoError(t, s.Unsubscribe("b", "bob"))
}

func TestPublishClampsOutOfRangeTTL(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("jobs"))
	now := time.Now()

	_, err := s.Publish("jobs", []byte("msg"), 0, now)
	require.NoError(t, err)
	out, err := s.DrainRetained("jobs", now)
	require.NoError(t, err)
	assert.Len(t, out, 1, "ttl below minimum should clamp, not drop the message immediately")
}
