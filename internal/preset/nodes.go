package preset

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/codec"
	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/session"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// SaveNode stores the state of the special node at addr in g as a node
// preset. The name follows the top-level policy: a taken name is an error.
func (p *Processor) SaveNode(g *graph.Graph, addr graph.Address, name string) (*SaveResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	node, err := g.Resolve(addr)
	if err != nil {
		return nil, err
	}
	state, err := codec.Get(node)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", addr, err)
	}
	payload, id, err := canonical(state)
	if err != nil {
		return nil, err
	}
	rec := store.NewRecord{ID: id, Name: name, Kind: node.Kind, Payload: payload}
	return p.putTop(TypeNode, store.Nodes, rec, false, func(tx *Processor, _ string) error {
		return tx.st.IndexKind(node.Kind, id)
	})
}

// NodeState returns the stored state of NodeRecord id and its kind.
func (p *Processor) NodeState(id hash.Digest) (any, *store.Record, error) {
	rec, err := p.st.Get(store.Nodes, id)
	if err != nil {
		return nil, nil, err
	}
	v, err := rec.Value()
	if err != nil {
		return nil, nil, err
	}
	return v, rec, nil
}

// LoadNode applies NodeRecord id to node. The kinds must match.
func (p *Processor) LoadNode(id hash.Digest, node *graph.Node) error {
	state, rec, err := p.NodeState(id)
	if err != nil {
		return err
	}
	if rec.Kind != node.Kind {
		return fmt.Errorf("node preset %q is a %s, cannot load onto a %s node", rec.Name, rec.Kind, node.Kind)
	}
	return codec.Set(node, state)
}

// NodeNames lists the saved nodes of kind whose name contains search, in
// the order they were first saved. An empty search lists them all.
func (p *Processor) NodeNames(kind, search string) ([]store.Entry, error) {
	if _, err := codec.Lookup(kind); err != nil {
		return nil, err
	}
	ids, err := p.st.KindIDs(kind)
	if err != nil {
		return nil, err
	}
	out := []store.Entry{}
	for _, id := range ids {
		name, err := p.st.NameOf(store.Nodes, id)
		if err != nil {
			return nil, err
		}
		if search == "" || strings.Contains(name, search) {
			out = append(out, store.Entry{ID: id, Name: name})
		}
	}
	return out, nil
}

// BeginNodePreview shows NodeRecord id on node until EndNodePreview. The
// state node had before the first preview is kept so it can be restored.
// A record that is not stored leaves node untouched and reports false.
func (p *Processor) BeginNodePreview(h session.Handle, node *graph.Node, id hash.Digest) (bool, error) {
	state, rec, err := p.NodeState(id)
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		p.log.Warn("nothing to preview", zap.String("id", id.Short()))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.Kind != node.Kind {
		return false, fmt.Errorf("node preset %q is a %s, cannot preview on a %s node", rec.Name, rec.Kind, node.Kind)
	}
	if !p.previews.IsPreviewing(h) {
		original, err := codec.Get(node)
		if err != nil {
			return false, err
		}
		p.previews.Begin(h, original, string(id))
	} else {
		p.previews.Begin(h, nil, string(id))
	}
	if err := codec.Set(node, state); err != nil {
		return false, err
	}
	return true, nil
}

// EndNodePreview closes the preview of h. Without commit the original
// state is written back onto node. Ending a preview that was never begun
// does nothing.
func (p *Processor) EndNodePreview(h session.Handle, node *graph.Node, commit bool) error {
	if !p.previews.IsPreviewing(h) {
		return nil
	}
	pv, err := p.previews.End(h)
	if err != nil {
		return err
	}
	if commit {
		return nil
	}
	return codec.Set(node, pv.Original)
}

// IsPreviewing reports whether h has an open preview.
func (p *Processor) IsPreviewing(h session.Handle) bool {
	return p.previews.IsPreviewing(h)
}
