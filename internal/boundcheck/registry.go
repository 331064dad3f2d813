package boundcheck

import (
	"sort"

	"github.com/orizon-lang/tirguard/internal/tir"
)

// Registry maps buffer identities to their element-count upper bound.
//
// A Registry belongs to one pass invocation. It starts with a single layer;
// Push and Pop add and drop overlays for lexically scoped lookups. With a
// single layer every Set overwrites the previous binding, so the registry
// reflects the most recently visited allocation regardless of scope.
//
// A nil bound marks a buffer with a degenerate (zero-dimensional) shape.
type Registry struct {
	layers []map[*tir.Var]tir.Expr
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{layers: []map[*tir.Var]tir.Expr{{}}}
}

// Set binds buf to bound in the innermost layer, replacing any binding there.
func (r *Registry) Set(buf *tir.Var, bound tir.Expr) {
	r.layers[len(r.layers)-1][buf] = bound
}

// Lookup returns the innermost binding of buf.
func (r *Registry) Lookup(buf *tir.Var) (tir.Expr, bool) {
	for i := len(r.layers) - 1; i >= 0; i-- {
		if b, ok := r.layers[i][buf]; ok {
			return b, true
		}
	}
	return nil, false
}

// Push opens a new overlay.
func (r *Registry) Push() {
	r.layers = append(r.layers, map[*tir.Var]tir.Expr{})
}

// Pop discards the innermost overlay. The base layer is never removed.
func (r *Registry) Pop() {
	if len(r.layers) > 1 {
		r.layers = r.layers[:len(r.layers)-1]
	}
}

// Depth returns the number of open overlays above the base layer.
func (r *Registry) Depth() int { return len(r.layers) - 1 }

// Buffers lists the visible buffers ordered by name.
func (r *Registry) Buffers() []*tir.Var {
	seen := map[*tir.Var]bool{}
	var out []*tir.Var
	for _, layer := range r.layers {
		for v := range layer {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CollectShapes gathers buffer_bound annotations from s without modifying it.
// Later annotations for the same buffer overwrite earlier ones.
func CollectShapes(s tir.Stmt) *Registry {
	r := NewRegistry()
	tir.Inspect(s, func(n tir.Node) bool {
		attr, ok := n.(*tir.AttrStmt)
		if ok && attr.Key == tir.AttrBufferBound && attr.Node != nil && attr.Value != nil {
			r.Set(attr.Node, attr.Value)
		}
		return true
	})
	return r
}
