package policystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersisterMissingSnapshot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewPersister(NewStore(), &MemSink{}, nil)
	p.Load(ctx)
	assert.Empty(p.Store.Threads())
	assert.True(p.Store.Locks("anything").Empty())
}

func TestPersisterCorruptSnapshot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := NewPersister(NewStore(), &MemSink{Raw: []byte("][")}, nil)
	p.Load(ctx)
	assert.Empty(p.Store.Threads())
}

func TestPersisterSaveFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	sink := &MemSink{Fail: errors.New("disk full")}
	p := NewPersister(NewStore(), sink, nil)
	p.Store.SetGroupName("t1", "x")
	assert.Error(p.Save(ctx))

	// next save succeeds once the sink recovers
	sink.SetFail(nil)
	assert.NoError(p.Save(ctx))
	assert.Equal(1, sink.Saves())
}

func TestPersisterRun(t *testing.T) {
	assert := assert.New(t)

	sink := &MemSink{}
	p := NewPersister(NewStore(), sink, nil)
	p.Store.SetEmoji("t1", "x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- p.Run(ctx, 10*time.Millisecond)
	}()
	assert.Eventually(func() bool { return sink.Saves() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(<-done)

	other := NewStore()
	assert.NoError(other.Restore(sink.Snapshot()))
	icon, ok := other.Emoji("t1")
	assert.True(ok)
	assert.Equal("x", icon)
}

func TestFileSink(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "nested", "policy.json")
	sink := NewFileSink(path)

	_, err := sink.Load(ctx)
	assert.ErrorIs(err, ErrNoSnapshot)

	require.NoError(sink.Save(ctx, []byte(`{"groupNames":{"t1":"a"}}`)))
	require.NoError(sink.Save(ctx, []byte(`{"groupNames":{"t1":"b"}}`)))
	raw, err := sink.Load(ctx)
	require.NoError(err)
	assert.Equal(`{"groupNames":{"t1":"b"}}`, string(raw))

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(err)
	assert.Len(entries, 1)
}

func TestRedisSink(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	sink, err := NewRedisSink("redis://localhost:6379/0", "test")
	if err != nil {
		t.Fail()
	}
	assert.NoError(sink.Client.Del(ctx, sink.Key).Err())
	_, err = sink.Load(ctx)
	assert.ErrorIs(err, ErrNoSnapshot)
	assert.NoError(sink.Save(ctx, []byte("{}")))
	raw, err := sink.Load(ctx)
	assert.NoError(err)
	assert.Equal("{}", string(raw))
}
