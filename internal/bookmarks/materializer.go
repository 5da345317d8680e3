package bookmarks

// Materializer converts provider trees into Model nodes.
type Materializer struct {
	model *Model
}

// NewMaterializer creates a materializer writing into model.
func NewMaterializer(model *Model) *Materializer {
	return &Materializer{model: model}
}

// Model returns the model being populated.
func (m *Materializer) Model() *Model {
	return m.model
}

// Materialize inserts native and its descendants into the model and returns
// the node for native. A node whose id is already present is returned as is
// and its subtree is not revisited.
//
// Each node is inserted before its children are visited, so a malformed tree
// containing a node as its own descendant terminates. Children must already be
// attached to native; no provider calls are made.
func (m *Materializer) Materialize(native *NativeNode) *Node {
	if native == nil {
		return nil
	}

	m.model.mu.Lock()
	defer m.model.mu.Unlock()

	if existing, ok := m.model.nodes[native.ID]; ok {
		return existing
	}

	var root *Node
	stack := []*NativeNode{native}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := m.model.nodes[cur.ID]; ok {
			continue
		}

		n := convert(cur)
		m.model.nodes[cur.ID] = n
		if root == nil {
			root = n
		}

		// Push in reverse so children are visited in native order.
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, &cur.Children[i])
		}
	}
	return root
}

// MaterializeAll materializes each root in order.
func (m *Materializer) MaterializeAll(roots []NativeNode) []*Node {
	nodes := make([]*Node, 0, len(roots))
	for i := range roots {
		nodes = append(nodes, m.Materialize(&roots[i]))
	}
	return nodes
}

func convert(native *NativeNode) *Node {
	n := &Node{
		ID:        native.ID,
		Title:     native.Title,
		Immutable: native.Unmodifiable != "",
		Added:     FromMillis(native.DateAdded),
	}
	if native.URL == "" {
		n.Folder = true
		n.Children = make([]string, 0, len(native.Children))
		for i := range native.Children {
			n.Children = append(n.Children, native.Children[i].ID)
		}
		n.LastModified = FromMillis(native.DateGroupModified)
		return n
	}
	n.URL = native.URL
	n.LastUsed = FromMillis(native.DateLastUsed)
	return n
}
