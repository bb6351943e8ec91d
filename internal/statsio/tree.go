// Package statsio builds the hierarchical simulation counter tree and
// serializes it as a binary tabular record, an indented text document,
// and (optionally) a brotli-archived text dump, a live Prometheus
// mirror, and a websocket push stream.
package statsio

import (
	"fmt"
	"sort"
	"sync"
)

// Node is one entry in the counter tree: a named counter with a value
// and any number of named children.
type Node struct {
	Name     string
	Value    uint64
	children map[string]*Node
	order    []string // insertion order, for stable dumps
}

func newNode(name string) *Node {
	return &Node{Name: name, children: make(map[string]*Node)}
}

// Child returns the named child, creating it if absent.
func (n *Node) Child(name string) *Node {
	if c, ok := n.children[name]; ok {
		return c
	}
	c := newNode(name)
	n.children[name] = c
	n.order = append(n.order, name)
	return c
}

// Add increments this node's counter.
func (n *Node) Add(delta uint64) { n.Value += delta }

// Sum returns this node's own value plus the recursive sum of all
// children, the "flatten/sum children" rollup spec §6 describes.
func (n *Node) Sum() uint64 {
	total := n.Value
	for _, c := range n.children {
		total += c.Sum()
	}
	return total
}

// Children returns this node's children in insertion order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.order))
	for i, name := range n.order {
		out[i] = n.children[name]
	}
	return out
}

// Tree is the top-level, concurrency-safe counter tree root.
type Tree struct {
	mu   sync.Mutex
	root *Node
}

// NewTree builds an empty tree.
func NewTree() *Tree {
	return &Tree{root: newNode("root")}
}

// Path walks/creates dotted path segments from the root and returns the
// leaf node, e.g. Path("core0", "l1", "hits").
func (t *Tree) Path(segments ...string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.root
	for _, s := range segments {
		cur = cur.Child(s)
	}
	return cur
}

// Root returns the tree's root node. Callers must not mutate
// concurrently with Path calls without external synchronization for
// multi-field reads; Dump* snapshot under the tree's own lock.
func (t *Tree) Root() *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// flatten walks the tree and returns (dottedName, value) pairs sorted by
// name, for deterministic dump output.
func flatten(n *Node, prefix string, out *[]kv) {
	full := n.Name
	if prefix != "" {
		full = prefix + "." + n.Name
	}
	if n.Name != "root" {
		*out = append(*out, kv{full, n.Value})
	}
	for _, c := range n.Children() {
		nextPrefix := full
		if n.Name == "root" {
			nextPrefix = ""
		}
		flatten(c, nextPrefix, out)
	}
}

type kv struct {
	name  string
	value uint64
}

func (t *Tree) flattened() []kv {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []kv
	flatten(t.root, "", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// DumpText renders an indented text document of the tree.
func (t *Tree) DumpText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b []byte
	b = appendText(b, t.root, 0)
	return string(b)
}

func appendText(b []byte, n *Node, depth int) []byte {
	for _, c := range n.Children() {
		for i := 0; i < depth; i++ {
			b = append(b, ' ', ' ')
		}
		b = append(b, fmt.Sprintf("%s: %d\n", c.Name, c.Value)...)
		b = appendText(b, c, depth+1)
	}
	return b
}
