// Package hashring implements the consistent-hash ring that maps a flow's
// five-tuple to a backend id, using weighted virtual nodes so that most
// membership changes only reshuffle a small fraction of flows.
package hashring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/easzlab/xhashlb/internal/hashing"
)

// DefaultVirtualNodes is the base replica count V used when the
// configuration does not override it.
const DefaultVirtualNodes = 150

// Ring is a sorted map from 32-bit hash position to backend id, guarded by
// a single mutex. Writers (Add/Remove) are expected to be rare and fast;
// readers (Lookup) hold the lock only for the duration of a binary search.
type Ring struct {
	mu       sync.Mutex
	replicas int // V, the virtual-node base

	keys []uint32          // sorted hash positions
	ids  map[uint32]uint32 // position -> backend id
}

// New creates an empty ring with the given virtual-node base. A
// non-positive value falls back to DefaultVirtualNodes.
func New(virtualNodes int) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = DefaultVirtualNodes
	}
	return &Ring{
		replicas: virtualNodes,
		ids:      make(map[uint32]uint32),
	}
}

// replicaCount returns max(1, floor(V*weight/100)) for the given weight.
func (r *Ring) replicaCount(weight uint32) int {
	n := r.replicas * int(weight) / 100
	if n < 1 {
		n = 1
	}
	return n
}

// Add inserts replicaCount(weight) virtual nodes for backend id. Calling
// Add again for an id that is already present first removes its existing
// entries, so Add is idempotent with respect to weight changes.
func (r *Ring) Add(id uint32, weight uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(id)

	n := r.replicaCount(weight)
	for i := 0; i < n; i++ {
		key := vnodeHash(id, i)
		if _, exists := r.ids[key]; !exists {
			r.keys = append(r.keys, key)
		}
		r.ids[key] = id // last write wins on collision
	}

	sort.Slice(r.keys, func(i, j int) bool { return r.keys[i] < r.keys[j] })
}

// Remove erases every virtual node belonging to id. O(n) in ring size.
func (r *Ring) Remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Ring) removeLocked(id uint32) {
	kept := r.keys[:0]
	for _, k := range r.keys {
		if r.ids[k] == id {
			delete(r.ids, k)
			continue
		}
		kept = append(kept, k)
	}
	r.keys = kept
}

// Lookup returns the backend id owning the first ring position greater than
// or equal to h, wrapping to the smallest position if none is. ok is false
// iff the ring is empty.
func (r *Ring) Lookup(h uint32) (id uint32, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return 0, false
	}

	i := sort.Search(len(r.keys), func(i int) bool { return r.keys[i] >= h })
	if i == len(r.keys) {
		i = 0
	}
	return r.ids[r.keys[i]], true
}

// LookupTuple hashes tuple with hashing.FiveTuple.Hash and looks it up.
func (r *Ring) LookupTuple(t hashing.FiveTuple) (id uint32, ok bool) {
	return r.Lookup(t.Hash())
}

// Size returns the number of virtual-node entries currently in the ring.
func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// vnodeHash hashes the "<id>#<replica>" label the way the reference
// consistent-hash schemes in the retrieval pack do, seeded at 0.
func vnodeHash(id uint32, replica int) uint32 {
	label := fmt.Sprintf("%d#%d", id, replica)
	return hashing.Murmur3_32([]byte(label), 0)
}
