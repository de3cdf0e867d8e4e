package certverify

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Hash tree node kinds, the first element of each CBOR array node.
const (
	nodeEmpty   = 0
	nodeFork    = 1
	nodeLabeled = 2
	nodeLeaf    = 3
	nodePruned  = 4
)

// Domain separators for node hashing. Distinct prefixes per node kind keep
// a leaf from ever colliding with an interior node.
var (
	sepEmpty   = []byte("odinbots-hashtree-empty")
	sepFork    = []byte("odinbots-hashtree-fork")
	sepLabeled = []byte("odinbots-hashtree-labeled")
	sepLeaf    = []byte("odinbots-hashtree-leaf")
)

// HashTree is one node of a certified response tree.
type HashTree struct {
	Kind  int
	Left  *HashTree
	Right *HashTree
	Label []byte
	Data  []byte // leaf data, or the pruned subtree hash
}

// UnmarshalCBOR decodes the array encoding [kind, ...].
func (t *HashTree) UnmarshalCBOR(b []byte) error {
	var parts []cbor.RawMessage
	if err := cbor.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("hash tree node: empty array")
	}
	var kind int
	if err := cbor.Unmarshal(parts[0], &kind); err != nil {
		return err
	}
	t.Kind = kind
	switch kind {
	case nodeEmpty:
		return nil
	case nodeFork:
		if len(parts) != 3 {
			return fmt.Errorf("fork node: want 3 elements, got %d", len(parts))
		}
		t.Left, t.Right = &HashTree{}, &HashTree{}
		if err := cbor.Unmarshal(parts[1], t.Left); err != nil {
			return err
		}
		return cbor.Unmarshal(parts[2], t.Right)
	case nodeLabeled:
		if len(parts) != 3 {
			return fmt.Errorf("labeled node: want 3 elements, got %d", len(parts))
		}
		if err := cbor.Unmarshal(parts[1], &t.Label); err != nil {
			return err
		}
		t.Left = &HashTree{}
		return cbor.Unmarshal(parts[2], t.Left)
	case nodeLeaf, nodePruned:
		if len(parts) != 2 {
			return fmt.Errorf("node kind %d: want 2 elements, got %d", kind, len(parts))
		}
		return cbor.Unmarshal(parts[1], &t.Data)
	default:
		return fmt.Errorf("hash tree node: unknown kind %d", kind)
	}
}

// MarshalCBOR encodes the array form. Used by local test authorities. Value
// receiver: Certificate carries the tree by value, and an unaddressable
// value would not reach a pointer-receiver marshaler.
func (t HashTree) MarshalCBOR() ([]byte, error) {
	switch t.Kind {
	case nodeEmpty:
		return cbor.Marshal([]any{nodeEmpty})
	case nodeFork:
		return cbor.Marshal([]any{nodeFork, t.Left, t.Right})
	case nodeLabeled:
		return cbor.Marshal([]any{nodeLabeled, t.Label, t.Left})
	case nodeLeaf:
		return cbor.Marshal([]any{nodeLeaf, t.Data})
	case nodePruned:
		return cbor.Marshal([]any{nodePruned, t.Data})
	default:
		return nil, fmt.Errorf("hash tree node: unknown kind %d", t.Kind)
	}
}

// Leaf, Labeled and Fork build tree nodes. Used by local test authorities;
// production trees arrive over the wire.
func Leaf(data []byte) *HashTree { return &HashTree{Kind: nodeLeaf, Data: data} }

func Labeled(label []byte, child *HashTree) *HashTree {
	return &HashTree{Kind: nodeLabeled, Label: label, Left: child}
}

func Fork(left, right *HashTree) *HashTree {
	return &HashTree{Kind: nodeFork, Left: left, Right: right}
}

// RootHash folds the tree into its certified root digest.
func (t *HashTree) RootHash() []byte {
	switch t.Kind {
	case nodeEmpty:
		return hashOf(sepEmpty)
	case nodeFork:
		return hashOf(sepFork, t.Left.RootHash(), t.Right.RootHash())
	case nodeLabeled:
		return hashOf(sepLabeled, t.Label, t.Left.RootHash())
	case nodeLeaf:
		return hashOf(sepLeaf, t.Data)
	case nodePruned:
		return t.Data
	default:
		return nil
	}
}

// Lookup walks labeled edges along path and returns the leaf data, if the
// full path is present (not pruned away).
func (t *HashTree) Lookup(path ...[]byte) ([]byte, bool) {
	node := t
	for _, label := range path {
		next, ok := node.findLabel(label)
		if !ok {
			return nil, false
		}
		node = next
	}
	if node.Kind != nodeLeaf {
		return nil, false
	}
	return node.Data, true
}

func (t *HashTree) findLabel(label []byte) (*HashTree, bool) {
	switch t.Kind {
	case nodeLabeled:
		if bytes.Equal(t.Label, label) {
			return t.Left, true
		}
		return nil, false
	case nodeFork:
		if n, ok := t.Left.findLabel(label); ok {
			return n, true
		}
		return t.Right.findLabel(label)
	default:
		return nil, false
	}
}

func hashOf(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
