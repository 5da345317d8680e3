package bookmarks

import (
	"sort"
	"sync"
)

// Model is the flat id -> node table. Only a Materializer mutates it.
// Returned nodes are shared and must be treated as read-only.
type Model struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{nodes: make(map[string]*Node)}
}

// Get returns the node with the given id.
func (m *Model) Get(id string) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// IDs returns all node ids in lexical order.
func (m *Model) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Children resolves the children of folder id, in order. Ids not present in
// the model are skipped. Items and unknown ids have no children.
func (m *Model) Children(id string) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok || !n.Folder {
		return nil
	}
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c, ok := m.nodes[cid]; ok {
			children = append(children, c)
		}
	}
	return children
}

// Walk visits the subtree rooted at id in pre-order. Returning false from fn
// stops the walk. Each id is visited at most once.
func (m *Model) Walk(id string, fn func(*Node) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}

		n, ok := m.nodes[cur]
		if !ok {
			continue
		}
		if !fn(n) {
			return
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Reset removes every node.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[string]*Node)
}
