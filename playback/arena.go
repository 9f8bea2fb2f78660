// SPDX-License-Identifier: EPL-2.0

package playback

import "fmt"

// SessionID addresses a session. The zero value is never issued.
type SessionID struct {
	Index      uint32
	Generation uint32
}

func (id SessionID) String() string {
	return fmt.Sprintf("%d.%d", id.Index, id.Generation)
}

type slot struct {
	gen     uint32
	session *Session
}

// arena hands out slots and bumps a slot's generation when it is freed.
// Callers hold the manager lock.
type arena struct {
	slots []slot
	free  []uint32
}

func (a *arena) insert(s *Session) SessionID {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot{gen: 1})
		idx = uint32(len(a.slots) - 1)
	}

	a.slots[idx].session = s

	return SessionID{Index: idx, Generation: a.slots[idx].gen}
}

func (a *arena) get(id SessionID) (*Session, bool) {
	if int(id.Index) >= len(a.slots) {
		return nil, false
	}

	sl := a.slots[id.Index]
	if sl.gen != id.Generation || sl.session == nil {
		return nil, false
	}

	return sl.session, true
}

func (a *arena) remove(id SessionID) bool {
	if _, ok := a.get(id); !ok {
		return false
	}

	a.slots[id.Index].session = nil
	a.slots[id.Index].gen++
	a.free = append(a.free, id.Index)

	return true
}

func (a *arena) all() []*Session {
	var out []*Session
	for _, sl := range a.slots {
		if sl.session != nil {
			out = append(out, sl.session)
		}
	}

	return out
}

func (a *arena) len() int {
	n := 0
	for _, sl := range a.slots {
		if sl.session != nil {
			n++
		}
	}

	return n
}
