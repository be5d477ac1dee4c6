package websocket

import (
	"context"
	"sync"

	"stoplight/internal/general/logger"
	"stoplight/internal/ports"
)

// Broadcaster keeps the process-wide membership of named broadcast groups and fans
// events out to them. Membership is mutated concurrently by independent sessions, so
// a coarse mutex guards the group map; sends happen outside the lock against a
// snapshot so a slow member never blocks membership changes.
type Broadcaster struct {
	logger *logger.Logger

	mu     sync.RWMutex
	groups map[string]map[ports.BroadcastMember]struct{}
}

// NewBroadcaster constructs an empty registry.
func NewBroadcaster(logger *logger.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		groups: make(map[string]map[ports.BroadcastMember]struct{}),
	}
}

var _ ports.Broadcaster = (*Broadcaster)(nil)

// Join adds a member to a group, creating the group on first use.
func (b *Broadcaster) Join(group string, member ports.BroadcastMember) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[group]
	if !ok {
		members = make(map[ports.BroadcastMember]struct{})
		b.groups[group] = members
	}
	members[member] = struct{}{}
}

// Leave removes a member from a group. Unknown members are a no-op.
func (b *Broadcaster) Leave(group string, member ports.BroadcastMember) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if members, ok := b.groups[group]; ok {
		delete(members, member)
		if len(members) == 0 {
			delete(b.groups, group)
		}
	}
}

// Publish delivers payload to every current member of the group. Delivery to each
// member is independent: a failure is logged and skipped, never raised to the
// publisher and never allowed to prevent delivery to the remaining members.
func (b *Broadcaster) Publish(ctx context.Context, group string, payload []byte) {
	b.mu.RLock()
	members := make([]ports.BroadcastMember, 0, len(b.groups[group]))
	for member := range b.groups[group] {
		members = append(members, member)
	}
	b.mu.RUnlock()

	for _, member := range members {
		if err := member.Send(payload); err != nil {
			b.logger.Error(ctx, "broadcast_member_send_failed",
				"Failed to deliver event to a broadcast member", err,
				map[string]any{"group": group, "size": len(payload)})
		}
	}
}

// MemberCount reports the current size of a group (admin/inspection use).
func (b *Broadcaster) MemberCount(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.groups[group])
}
