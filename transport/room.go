package transport

import (
	"sync"

	"github.com/interviewrt/runtime/orchestrator"
)

// RoomRegistry fans WebRTC signalling and observer frames out to every
// other connection sharing a stream id (spec §12 supplemented feature,
// grounded on original_source's multi-viewer relay in consumers.py,
// where every connected socket for a room receives group_send frames).
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]orchestrator.ClientSender // streamID -> sessionID -> sender
}

// NewRoomRegistry constructs an empty RoomRegistry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]map[string]orchestrator.ClientSender)}
}

// Join registers sessionID's sender under streamID.
func (r *RoomRegistry) Join(streamID, sessionID string, sender orchestrator.ClientSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[streamID]
	if !ok {
		members = make(map[string]orchestrator.ClientSender)
		r.rooms[streamID] = members
	}
	members[sessionID] = sender
}

// Broadcast implements orchestrator.RoomBroadcaster: sends msg to every
// member of streamID except exclude (typically the sender itself).
func (r *RoomRegistry) Broadcast(streamID string, msg orchestrator.ServerMessage, exclude string) {
	r.mu.RLock()
	members := r.rooms[streamID]
	targets := make([]orchestrator.ClientSender, 0, len(members))
	for sessionID, sender := range members {
		if sessionID == exclude {
			continue
		}
		targets = append(targets, sender)
	}
	r.mu.RUnlock()

	for _, sender := range targets {
		_ = sender.Send(msg)
	}
}

// leaveAll removes sessionID from every room it joined, called when its
// connection closes.
func (r *RoomRegistry) leaveAll(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for streamID, members := range r.rooms {
		if _, ok := members[sessionID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(r.rooms, streamID)
			}
		}
	}
}
