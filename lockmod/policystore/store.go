package policystore

import (
	"sort"
	"sync"
)

// Declared lock values for a single thread. A zero value means nothing is locked.
type ThreadLocks struct {
	GroupName *string
	Nicknames map[string]string
	Emoji     *string
	AntiOut   bool
	Target    *string
}

// Returns true if no lock of any kind is held for the thread.
func (tl ThreadLocks) Empty() bool {
	return tl.GroupName == nil && len(tl.Nicknames) == 0 && tl.Emoji == nil && !tl.AntiOut && tl.Target == nil
}

// In-memory policy record, keyed by thread id.
//
// Absence of a key means "unlocked". All methods are safe for concurrent use; the lock is only held for the duration of a single read or read-modify-write, never across external calls.
type Store struct {
	lk         sync.RWMutex
	groupNames map[string]string
	nicknames  map[string]map[string]string
	emojis     map[string]string
	antiOut    map[string]bool
	target     map[string]string
}

func NewStore() *Store {
	return &Store{
		groupNames: make(map[string]string),
		nicknames:  make(map[string]map[string]string),
		emojis:     make(map[string]string),
		antiOut:    make(map[string]bool),
		target:     make(map[string]string),
	}
}

func (s *Store) GroupName(thread string) (string, bool) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	v, ok := s.groupNames[thread]
	return v, ok
}

func (s *Store) SetGroupName(thread, name string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.groupNames[thread] = name
}

func (s *Store) ClearGroupName(thread string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.groupNames, thread)
}

func (s *Store) Nickname(thread, member string) (string, bool) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	m, ok := s.nicknames[thread]
	if !ok {
		return "", false
	}
	v, ok := m[member]
	return v, ok
}

// Returns a copy of all nickname locks for the thread (possibly empty, never nil).
func (s *Store) Nicknames(thread string) map[string]string {
	s.lk.RLock()
	defer s.lk.RUnlock()
	out := make(map[string]string, len(s.nicknames[thread]))
	for k, v := range s.nicknames[thread] {
		out[k] = v
	}
	return out
}

func (s *Store) SetNickname(thread, member, nick string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	m, ok := s.nicknames[thread]
	if !ok {
		m = make(map[string]string)
		s.nicknames[thread] = m
	}
	m[member] = nick
}

// Locks every listed member to the same nickname, in a single critical section.
func (s *Store) SetNicknames(thread string, members []string, nick string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	m, ok := s.nicknames[thread]
	if !ok {
		m = make(map[string]string, len(members))
		s.nicknames[thread] = m
	}
	for _, member := range members {
		m[member] = nick
	}
}

func (s *Store) ClearNickname(thread, member string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	m, ok := s.nicknames[thread]
	if !ok {
		return
	}
	delete(m, member)
	if len(m) == 0 {
		delete(s.nicknames, thread)
	}
}

// Removes all nickname locks for the thread, returning what was removed.
func (s *Store) ClearNicknames(thread string) map[string]string {
	s.lk.Lock()
	defer s.lk.Unlock()
	m, ok := s.nicknames[thread]
	if !ok {
		return map[string]string{}
	}
	delete(s.nicknames, thread)
	return m
}

func (s *Store) Emoji(thread string) (string, bool) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	v, ok := s.emojis[thread]
	return v, ok
}

func (s *Store) SetEmoji(thread, icon string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.emojis[thread] = icon
}

func (s *Store) ClearEmoji(thread string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.emojis, thread)
}

func (s *Store) AntiOut(thread string) bool {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return s.antiOut[thread]
}

// Setting anti-out to false removes the key entirely.
func (s *Store) SetAntiOut(thread string, on bool) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if on {
		s.antiOut[thread] = true
	} else {
		delete(s.antiOut, thread)
	}
}

func (s *Store) Target(thread string) (string, bool) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	v, ok := s.target[thread]
	return v, ok
}

func (s *Store) SetTarget(thread, member string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.target[thread] = member
}

func (s *Store) ClearTarget(thread string) {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.target, thread)
}

// Returns a copy of every lock held for one thread.
func (s *Store) Locks(thread string) ThreadLocks {
	s.lk.RLock()
	defer s.lk.RUnlock()
	var tl ThreadLocks
	if v, ok := s.groupNames[thread]; ok {
		tl.GroupName = &v
	}
	if m, ok := s.nicknames[thread]; ok && len(m) > 0 {
		tl.Nicknames = make(map[string]string, len(m))
		for k, v := range m {
			tl.Nicknames[k] = v
		}
	}
	if v, ok := s.emojis[thread]; ok {
		tl.Emoji = &v
	}
	tl.AntiOut = s.antiOut[thread]
	if v, ok := s.target[thread]; ok {
		tl.Target = &v
	}
	return tl
}

// Sorted list of every thread id which holds at least one lock.
func (s *Store) Threads() []string {
	s.lk.RLock()
	defer s.lk.RUnlock()
	seen := make(map[string]bool)
	for k := range s.groupNames {
		seen[k] = true
	}
	for k, m := range s.nicknames {
		if len(m) > 0 {
			seen[k] = true
		}
	}
	for k := range s.emojis {
		seen[k] = true
	}
	for k := range s.antiOut {
		seen[k] = true
	}
	for k := range s.target {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
