package query

import "github.com/dd0wney/cluso-graphquery/pkg/storage"

// reference is what a command registered under its reference id: a node
// sequence, or the edges an AddEdge created.
type reference struct {
	nodes *NodeSequence
	edges []*storage.Edge
}

// ReferenceCache maps reference ids to the results of earlier commands of one
// transaction. It is owned by a single Handler and cleared when the transaction ends.
type ReferenceCache struct {
	refs map[int]*reference
}

// NewReferenceCache returns an empty cache
func NewReferenceCache() *ReferenceCache {
	return &ReferenceCache{refs: make(map[int]*reference)}
}

// Has reports whether id is registered
func (c *ReferenceCache) Has(id int) bool {
	_, ok := c.refs[id]
	return ok
}

// PutNodes registers a node sequence under id
func (c *ReferenceCache) PutNodes(id int, seq *NodeSequence) error {
	return c.put(id, &reference{nodes: seq})
}

// PutEdges registers the edges created by an AddEdge under id
func (c *ReferenceCache) PutEdges(id int, edges []*storage.Edge) error {
	return c.put(id, &reference{edges: edges})
}

func (c *ReferenceCache) put(id int, ref *reference) error {
	if id <= 0 {
		return newError(KindMalformedCommand, "", "reference id %d must be positive", id)
	}
	if c.Has(id) {
		return &Error{Kind: KindMalformedCommand, Ref: id, Msg: "duplicate reference id"}
	}
	c.refs[id] = ref
	return nil
}

// Nodes returns the sequence registered under id, rewound to its first node.
// Unknown ids and edge references fail with KindInvalidReference.
func (c *ReferenceCache) Nodes(id int) (*NodeSequence, error) {
	ref, ok := c.refs[id]
	if !ok {
		return nil, &Error{Kind: KindInvalidReference, Ref: id, Msg: "reference not registered in this transaction"}
	}
	if ref.nodes == nil {
		return nil, &Error{Kind: KindInvalidReference, Ref: id, Msg: "reference holds edges, not nodes"}
	}
	ref.nodes.Reset()
	return ref.nodes, nil
}

// Len returns the number of registered references
func (c *ReferenceCache) Len() int {
	return len(c.refs)
}

// Clear drops every reference
func (c *ReferenceCache) Clear() {
	clear(c.refs)
}
