package collab

import (
	"encoding/json"
	"log/slog"
)

// PresenceManager tracks each connection's cursor and tool so peers can
// draw them. Entries are keyed by client id: one user with two tabs shows
// two cursors. It is owned by the hub goroutine.
type PresenceManager struct {
	presences map[string]*PresencePayload // clientID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

// Update merges p into the entry for clientID. The display name is fixed at
// join time and cannot be changed by an update; a nil cursor keeps the last
// known position.
func (pm *PresenceManager) Update(clientID string, p PresencePayload) PresencePayload {
	prev, ok := pm.presences[clientID]
	if ok {
		p.DisplayName = prev.DisplayName
		if p.Cursor == nil {
			p.Cursor = prev.Cursor
		}
		if p.Tool == "" {
			p.Tool = prev.Tool
		}
	}
	pm.presences[clientID] = &p
	return p
}

func (pm *PresenceManager) Remove(clientID string) {
	delete(pm.presences, clientID)
}

func (pm *PresenceManager) Len() int { return len(pm.presences) }

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		cp := *v
		result[k] = &cp
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	payload, err := json.Marshal(PresenceStatePayload{Presences: pm.GetAll()})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}
