// Package bookmarks mirrors a browser bookmark tree into a flat, addressable model.
//
// The provider hands over a nested tree of NativeNode values. A Materializer
// converts it into Node values stored in a Model keyed by provider id. Folders
// reference their children by id, so the Model is an arena with no pointers
// between nodes and no possibility of reference cycles.
//
// # Usage
//
//	model := bookmarks.NewModel()
//	m := bookmarks.NewMaterializer(model)
//	roots := m.MaterializeAll(tree)
//	for _, id := range roots[0].Children {
//	    child, _ := model.Get(id)
//	    ...
//	}
//
// Materialization is memoized by id: a node that already exists in the Model
// is returned unchanged, which also terminates malformed trees in which a node
// appears as its own descendant.
package bookmarks
