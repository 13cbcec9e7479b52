package transport

import (
	"sync"

	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "transport").Logger()

// Member is a connection that can be joined to a broadcast group. Send must
// not block; it reports false when the payload was dropped.
type Member interface {
	ID() string
	Send(payload []byte) bool
}

// Hub keeps one broadcast group per instrument. A member belongs to at most
// one group at a time.
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[string]Member
	members map[string]string
}

func NewHub() *Hub {
	return &Hub{
		groups:  make(map[string]map[string]Member),
		members: make(map[string]string),
	}
}

func (h *Hub) Name() string {
	return "hub"
}

// Join moves member into the group of symbol.
func (h *Hub) Join(symbol string, member Member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(member.ID())

	group, ok := h.groups[symbol]
	if !ok {
		group = make(map[string]Member)
		h.groups[symbol] = group
	}
	group[member.ID()] = member
	h.members[member.ID()] = symbol
}

// Leave removes the member from its group, if any.
func (h *Hub) Leave(memberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(memberID)
}

func (h *Hub) leave(memberID string) {
	symbol, ok := h.members[memberID]
	if !ok {
		return
	}
	delete(h.members, memberID)

	group := h.groups[symbol]
	delete(group, memberID)
	if len(group) == 0 {
		delete(h.groups, symbol)
	}
}

// Broadcast delivers payload to every member of the group of symbol.
func (h *Hub) Broadcast(symbol string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, member := range h.groups[symbol] {
		if !member.Send(payload) {
			logger.Debug().Str("member", id).Str("symbol", symbol).Msg("member is slow, message dropped")
		}
	}
}

func (h *Hub) GroupSize(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[symbol])
}

func (h *Hub) GroupOf(memberID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	symbol, ok := h.members[memberID]
	return symbol, ok
}
