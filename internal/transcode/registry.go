// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"sort"
	"sync"
)

// Registry indexes live sessions by task id. It is process-local and
// does not gate admission.
type Registry struct {
	sessions sync.Map // map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register indexes s. A session that is already shutting down is dropped
// again, since its OnClose may have run before Register.
func (r *Registry) Register(s *Session) {
	r.sessions.Store(s.ID(), s)
	if s.State().Terminal() {
		r.sessions.Delete(s.ID())
	}
}

func (r *Registry) Unregister(id string) {
	r.sessions.Delete(id)
}

// Get returns the session for id, or nil.
func (r *Registry) Get(id string) *Session {
	if v, ok := r.sessions.Load(id); ok {
		return v.(*Session)
	}
	return nil
}

// Owned returns the live session for id when it belongs to client.
func (r *Registry) Owned(id, client string) *Session {
	s := r.Get(id)
	if s == nil || s.ClientID() != client {
		return nil
	}
	return s
}

// Cancel closes client's session for id and waits for its process to be
// reaped. It reports whether such a session existed; sessions of other
// clients are left alone.
func (r *Registry) Cancel(id, client string) bool {
	s := r.Owned(id, client)
	if s == nil {
		return false
	}
	_ = s.Close()
	r.sessions.Delete(id)
	return true
}

// List returns snapshots of client's live sessions, oldest first. An empty
// client lists every session.
func (r *Registry) List(client string) []Snapshot {
	list := []Snapshot{}
	r.sessions.Range(func(_, value any) bool {
		s := value.(*Session)
		if client == "" || s.ClientID() == client {
			list = append(list, s.Snapshot())
		}
		return true
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].TaskID < list[j].TaskID
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll closes every live session concurrently and waits for all of them.
func (r *Registry) CloseAll() {
	var wg sync.WaitGroup
	r.sessions.Range(func(key, value any) bool {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_ = s.Close()
		}(value.(*Session))
		r.sessions.Delete(key)
		return true
	})
	wg.Wait()
}
