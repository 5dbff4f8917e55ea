package realtime

import (
	"sort"
	"sync"
)

// Subscriber is one connected client as seen by the room machinery. The
// registry tells subscribers apart by ID, which must be unique and stable.
type Subscriber interface {
	ID() string
	Deliver(msg []byte) error
}

// Registry maps project ids to the subscribers viewing them. Rooms exist only
// while they have at least one member.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]Subscriber // project id -> subscriber id -> subscriber
	members map[string]map[string]struct{}   // subscriber id -> project ids
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[string]Subscriber),
		members: make(map[string]map[string]struct{}),
	}
}

// Join is idempotent.
func (r *Registry) Join(projectID string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := s.ID()
	if r.rooms[projectID] == nil {
		r.rooms[projectID] = make(map[string]Subscriber)
	}
	r.rooms[projectID][id] = s
	if r.members[id] == nil {
		r.members[id] = make(map[string]struct{})
	}
	r.members[id][projectID] = struct{}{}
}

func (r *Registry) Leave(projectID string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(projectID, s.ID())
}

// LeaveAll drops s from every room and returns the rooms it was in.
func (r *Registry) LeaveAll(s Subscriber) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var left []string
	id := s.ID()
	for projectID := range r.members[id] {
		left = append(left, projectID)
	}
	for _, projectID := range left {
		r.leaveLocked(projectID, id)
	}
	sort.Strings(left)
	return left
}

func (r *Registry) leaveLocked(projectID, id string) {
	if subs, ok := r.rooms[projectID]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(r.rooms, projectID)
		}
	}
	if rooms, ok := r.members[id]; ok {
		delete(rooms, projectID)
		if len(rooms) == 0 {
			delete(r.members, id)
		}
	}
}

// MembersOf returns a snapshot; callers may deliver without holding the lock.
func (r *Registry) MembersOf(projectID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := r.rooms[projectID]
	out := make([]Subscriber, 0, len(subs))
	for _, s := range subs {
		out = append(out, s)
	}
	return out
}

func (r *Registry) IsMember(projectID string, s Subscriber) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[projectID][s.ID()]
	return ok
}

func (r *Registry) RoomsOf(s Subscriber) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := r.members[s.ID()]
	out := make([]string, 0, len(rooms))
	for projectID := range rooms {
		out = append(out, projectID)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
