package bookmarks

import (
	"encoding/json"
	"time"
)

// Node is a normalized bookmark entity. Folder discriminates between a folder
// (Children, LastModified) and an item (URL, LastUsed).
type Node struct {
	ID        string
	Title     string
	Immutable bool
	Added     *time.Time

	Folder       bool
	Children     []string
	LastModified *time.Time

	URL      string
	LastUsed *time.Time
}

// IsItem reports whether the node is a bookmark item.
func (n *Node) IsItem() bool {
	return !n.Folder
}

type folderJSON struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Immutable    bool       `json:"immutable"`
	Added        *time.Time `json:"added,omitempty"`
	Folder       bool       `json:"folder"`
	Children     []string   `json:"children"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

type itemJSON struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Immutable bool       `json:"immutable"`
	Added     *time.Time `json:"added,omitempty"`
	Folder    bool       `json:"folder"`
	URL       string     `json:"url"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}

// MarshalJSON encodes only the fields of the node's variant.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.Folder {
		children := n.Children
		if children == nil {
			children = []string{}
		}
		return json.Marshal(folderJSON{
			ID:           n.ID,
			Title:        n.Title,
			Immutable:    n.Immutable,
			Added:        n.Added,
			Folder:       true,
			Children:     children,
			LastModified: n.LastModified,
		})
	}
	return json.Marshal(itemJSON{
		ID:        n.ID,
		Title:     n.Title,
		Immutable: n.Immutable,
		Added:     n.Added,
		URL:       n.URL,
		LastUsed:  n.LastUsed,
	})
}

// NativeNode is the provider's bookmark tree node. Timestamps are epoch
// milliseconds. An empty URL denotes a folder. A non-empty Unmodifiable
// carries the provider's reason for refusing edits.
type NativeNode struct {
	ID                string       `json:"id"`
	ParentID          string       `json:"parentId,omitempty"`
	Index             *int         `json:"index,omitempty"`
	Title             string       `json:"title"`
	URL               string       `json:"url,omitempty"`
	DateAdded         *int64       `json:"dateAdded,omitempty"`
	DateGroupModified *int64       `json:"dateGroupModified,omitempty"`
	DateLastUsed      *int64       `json:"dateLastUsed,omitempty"`
	Unmodifiable      string       `json:"unmodifiable,omitempty"`
	Children          []NativeNode `json:"children,omitempty"`
}

// FromMillis converts an optional epoch-millisecond timestamp.
func FromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

// Millis returns a pointer to ms, for building NativeNode values.
func Millis(ms int64) *int64 {
	return &ms
}
