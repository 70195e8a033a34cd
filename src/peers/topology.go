package peers

import (
	"fmt"
	"sync"
)

// Topology is this node's view of the cluster: its own ID, the full list of
// cluster nodes, and the ordered list of direct neighbors. The neighbor
// list is assigned once per cluster lifetime by a topology message and is
// read-mostly afterward.
type Topology struct {
	sync.RWMutex

	self      string
	nodeIDs   []string
	neighbors []string
	members   map[string]struct{}
}

// NewTopology creates the topology view for node self. Until a topology
// message arrives, every other cluster node is considered a neighbor.
func NewTopology(self string, nodeIDs []string) *Topology {
	t := &Topology{
		self:    self,
		nodeIDs: append([]string(nil), nodeIDs...),
		members: make(map[string]struct{}, len(nodeIDs)),
	}

	for _, id := range nodeIDs {
		t.members[id] = struct{}{}
		if id != self {
			t.neighbors = append(t.neighbors, id)
		}
	}

	return t
}

// Update extracts this node's neighbor list from the mapping and stores it.
// Calling it again replaces the previous list; the mapping is authoritative
// and single-writer, so last write wins. A mapping that does not contain
// this node's own ID is a configuration error.
func (t *Topology) Update(mapping map[string][]string) error {
	neighbors, ok := mapping[t.self]
	if !ok {
		return fmt.Errorf("topology does not contain own node ID %q", t.self)
	}

	t.Lock()
	defer t.Unlock()

	t.neighbors = append([]string(nil), neighbors...)

	return nil
}

// Neighbors returns a copy of the current neighbor list, in the order it
// was assigned. It is empty only when the cluster has a single node.
func (t *Topology) Neighbors() []string {
	t.RLock()
	defer t.RUnlock()

	return append([]string(nil), t.neighbors...)
}

// Self returns this node's ID.
func (t *Topology) Self() string {
	return t.self
}

// NodeIDs returns the full list of cluster nodes, in cluster-init order.
func (t *Topology) NodeIDs() []string {
	t.RLock()
	defer t.RUnlock()

	return append([]string(nil), t.nodeIDs...)
}

// Contains reports whether id is a node inside the cluster, as opposed to a
// harness client.
func (t *Topology) Contains(id string) bool {
	t.RLock()
	defer t.RUnlock()

	_, ok := t.members[id]
	return ok
}

// Len returns the number of cluster nodes.
func (t *Topology) Len() int {
	t.RLock()
	defer t.RUnlock()

	return len(t.nodeIDs)
}
