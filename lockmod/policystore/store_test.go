package policystore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreBasics(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	_, ok := s.GroupName("t1")
	assert.False(ok)
	assert.True(s.Locks("t1").Empty())

	s.SetGroupName("t1", "Book Club")
	s.SetGroupName("t1", "Book Club")
	v, ok := s.GroupName("t1")
	assert.True(ok)
	assert.Equal("Book Club", v)

	s.SetEmoji("t1", "🔥")
	s.SetAntiOut("t1", true)
	s.SetTarget("t1", "u9")
	s.SetNickname("t1", "u1", "alpha")
	s.SetNicknames("t1", []string{"u2", "u3"}, "beta")

	locks := s.Locks("t1")
	assert.Equal("Book Club", *locks.GroupName)
	assert.Equal("🔥", *locks.Emoji)
	assert.True(locks.AntiOut)
	assert.Equal("u9", *locks.Target)
	assert.Equal(map[string]string{"u1": "alpha", "u2": "beta", "u3": "beta"}, locks.Nicknames)

	// returned maps are copies
	locks.Nicknames["u1"] = "mutated"
	n, _ := s.Nickname("t1", "u1")
	assert.Equal("alpha", n)

	s.ClearNickname("t1", "u1")
	_, ok = s.Nickname("t1", "u1")
	assert.False(ok)

	cleared := s.ClearNicknames("t1")
	assert.Equal(map[string]string{"u2": "beta", "u3": "beta"}, cleared)
	assert.Empty(s.Nicknames("t1"))

	s.SetAntiOut("t1", false)
	assert.False(s.AntiOut("t1"))
	s.ClearGroupName("t1")
	s.ClearEmoji("t1")
	s.ClearTarget("t1")
	assert.True(s.Locks("t1").Empty())
	assert.Empty(s.Threads())
}

func TestStoreThreads(t *testing.T) {
	assert := assert.New(t)

	s := NewStore()
	s.SetEmoji("b", "x")
	s.SetGroupName("a", "y")
	s.SetNickname("c", "u1", "z")
	s.SetNickname("d", "u1", "z")
	s.ClearNickname("d", "u1")
	assert.Equal([]string{"a", "b", "c"}, s.Threads())
}

func TestStoreConcurrent(t *testing.T) {
	assert := assert.New(t)

	// run with `-race`
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.SetNickname("t1", "u1", "nick")
				s.Nicknames("t1")
				s.SetGroupName("t1", "name")
				_, _ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	v, ok := s.Nickname("t1", "u1")
	assert.True(ok)
	assert.Equal("nick", v)
}
