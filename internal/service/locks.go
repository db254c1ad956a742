package service

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// UserLocks serializes read-modify-write spans per user. Cart mutations and
// checkout share one instance so a checkout can never interleave with an add
// or remove for the same user within this process. Cross-process races are
// caught by the cart version check.
type UserLocks struct {
	shards [lockShards]sync.Mutex
}

// NewUserLocks creates a striped per-user lock set.
func NewUserLocks() *UserLocks {
	return &UserLocks{}
}

// Lock acquires the shard for the given user and returns the release func.
func (l *UserLocks) Lock(userID string) func() {
	m := &l.shards[shardFor(userID)]
	m.Lock()
	return m.Unlock
}

func shardFor(userID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return h.Sum32() % lockShards
}
