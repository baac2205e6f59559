package policystore

import (
	"encoding/json"
	"fmt"
)

// Serialized form of the policy store. Field names are part of the on-disk format.
type Snapshot struct {
	GroupNames map[string]string            `json:"groupNames"`
	Nicknames  map[string]map[string]string `json:"nicknames"`
	Emojis     map[string]string            `json:"emojis"`
	AntiOut    map[string]bool              `json:"antiOut"`
	Target     map[string]string            `json:"target,omitempty"`
}

// Serializes the entire store as indented JSON.
func (s *Store) Snapshot() ([]byte, error) {
	s.lk.RLock()
	snap := Snapshot{
		GroupNames: copyStrings(s.groupNames),
		Nicknames:  make(map[string]map[string]string, len(s.nicknames)),
		Emojis:     copyStrings(s.emojis),
		AntiOut:    make(map[string]bool, len(s.antiOut)),
	}
	for thread, m := range s.nicknames {
		if len(m) == 0 {
			continue
		}
		snap.Nicknames[thread] = copyStrings(m)
	}
	for thread, on := range s.antiOut {
		snap.AntiOut[thread] = on
	}
	if len(s.target) > 0 {
		snap.Target = copyStrings(s.target)
	}
	s.lk.RUnlock()

	return json.MarshalIndent(snap, "", "  ")
}

// Replaces the entire contents of the store with a serialized snapshot.
//
// On a parse error the store is left empty and the error returned; callers decide whether that is fatal.
func (s *Store) Restore(raw []byte) error {
	var snap Snapshot
	err := json.Unmarshal(raw, &snap)

	s.lk.Lock()
	defer s.lk.Unlock()
	s.groupNames = make(map[string]string)
	s.nicknames = make(map[string]map[string]string)
	s.emojis = make(map[string]string)
	s.antiOut = make(map[string]bool)
	s.target = make(map[string]string)
	if err != nil {
		return fmt.Errorf("parsing policy snapshot: %w", err)
	}

	for thread, name := range snap.GroupNames {
		s.groupNames[thread] = name
	}
	for thread, m := range snap.Nicknames {
		if len(m) == 0 {
			continue
		}
		s.nicknames[thread] = copyStrings(m)
	}
	for thread, icon := range snap.Emojis {
		s.emojis[thread] = icon
	}
	for thread, on := range snap.AntiOut {
		// false entries are equivalent to absence
		if on {
			s.antiOut[thread] = true
		}
	}
	for thread, member := range snap.Target {
		s.target[thread] = member
	}
	return nil
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
