package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockMember struct {
	id   string
	mu   sync.Mutex
	msgs []string
	full bool
}

func (m *mockMember) ID() string { return m.id }

func (m *mockMember) Send(payload []byte) bool {
	if m.full {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, string(payload))
	return true
}

func (m *mockMember) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.msgs...)
}

func TestHub_BroadcastReachesOnlyTheGroup(t *testing.T) {
	h := NewHub()
	c1 := &mockMember{id: "c1"}
	c2 := &mockMember{id: "c2"}
	c3 := &mockMember{id: "c3"}

	h.Join("btcusdt", c1)
	h.Join("btcusdt", c2)
	h.Join("ethusdt", c3)

	h.Broadcast("btcusdt", []byte("book"))

	assert.Equal(t, []string{"book"}, c1.received())
	assert.Equal(t, []string{"book"}, c2.received())
	assert.Empty(t, c3.received())
}

func TestHub_JoinMovesMemberBetweenGroups(t *testing.T) {
	h := NewHub()
	c1 := &mockMember{id: "c1"}

	h.Join("btcusdt", c1)
	h.Join("ethusdt", c1)

	assert.Equal(t, 0, h.GroupSize("btcusdt"))
	assert.Equal(t, 1, h.GroupSize("ethusdt"))
	group, ok := h.GroupOf("c1")
	assert.True(t, ok)
	assert.Equal(t, "ethusdt", group)

	h.Broadcast("btcusdt", []byte("old"))
	assert.Empty(t, c1.received())
}

func TestHub_Leave(t *testing.T) {
	h := NewHub()
	c1 := &mockMember{id: "c1"}

	h.Join("btcusdt", c1)
	h.Leave("c1")
	h.Leave("c1")

	_, ok := h.GroupOf("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, h.GroupSize("btcusdt"))

	h.Broadcast("btcusdt", []byte("book"))
	assert.Empty(t, c1.received())
}

func TestHub_SlowMemberDoesNotAffectOthers(t *testing.T) {
	h := NewHub()
	slow := &mockMember{id: "slow", full: true}
	fast := &mockMember{id: "fast"}

	h.Join("btcusdt", slow)
	h.Join("btcusdt", fast)
	h.Broadcast("btcusdt", []byte("book"))

	assert.Equal(t, []string{"book"}, fast.received())
}
