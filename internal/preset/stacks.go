package preset

import (
	"fmt"

	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// StackLayer is one member of a saved modifier stack.
type StackLayer struct {
	Label  string      `json:"label"`
	Preset hash.Digest `json:"preset"`
}

// StackPayload is the payload of a ModifierStackPreset record. The record
// id hashes the ordered preset ids only.
type StackPayload struct {
	Layers []StackLayer `json:"layers"`
}

func stackID(layers []StackLayer) hash.Digest {
	ids := make([]hash.Digest, len(layers))
	for i, l := range layers {
		ids[i] = l.Preset
	}
	return hash.Sequence(ids)
}

// SaveStack saves every layer of st as a geometry node preset named
// "{name}_{label}" (suffixed when taken) and stores their ordered ids as
// the stack preset name. Nothing is written if any step fails.
func (p *Processor) SaveStack(st *graph.Stack, name string) (*SaveResult, []*SaveResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}
	if st == nil || len(st.Layers) == 0 {
		return nil, nil, fmt.Errorf("modifier stack %q has no layers", name)
	}
	for _, l := range st.Layers {
		if l.Graph == nil {
			return nil, nil, fmt.Errorf("layer %q has no node graph", l.Label)
		}
	}
	var (
		res     *SaveResult
		members []*SaveResult
	)
	err := p.update(func(tx *Processor) error {
		members = members[:0]
		payload := StackPayload{}
		for _, l := range st.Layers {
			m, err := tx.saveGraph(graph.GeometryNode, l.Graph, name+"_"+l.Label, true)
			if err != nil {
				return fmt.Errorf("layer %q: %w", l.Label, err)
			}
			members = append(members, m)
			payload.Layers = append(payload.Layers, StackLayer{Label: l.Label, Preset: m.ID})
		}
		b, err := hash.Canonical(payload)
		if err != nil {
			return err
		}
		res, err = tx.putTop(TypeStack, store.ModStack, store.NewRecord{ID: stackID(payload.Layers), Name: name, Payload: b}, false, nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return res, members, nil
}

// Stack returns the payload and name of stack preset id.
func (p *Processor) Stack(id hash.Digest) (*StackPayload, string, error) {
	rec, err := p.st.Get(store.ModStack, id)
	if err != nil {
		return nil, "", err
	}
	var sp StackPayload
	if err := decodeInto(rec.Payload, &sp); err != nil {
		return nil, "", fmt.Errorf("modifier stack %s: %w", id.Short(), err)
	}
	return &sp, rec.Name, nil
}

// Resolver supplies a fresh live graph for a stored graph identity.
type Resolver func(label string, info *GraphInfo) (*graph.Graph, error)

// LoadedLayer is one rebuilt layer of a modifier stack.
type LoadedLayer struct {
	Label  string       `json:"label"`
	Graph  *graph.Graph `json:"graph"`
	Report *LoadReport  `json:"report"`
}

// LoadStack rebuilds stack preset id: each member's graph is obtained from
// resolve and receives the member preset in full, in stack order.
func (p *Processor) LoadStack(id hash.Digest, resolve Resolver) ([]LoadedLayer, error) {
	sp, name, err := p.Stack(id)
	if err != nil {
		return nil, err
	}
	out := make([]LoadedLayer, 0, len(sp.Layers))
	for _, l := range sp.Layers {
		tx, err := p.ResolveGraph(graph.GeometryNode, l.Preset)
		if err != nil {
			return nil, fmt.Errorf("stack %q layer %q: %w", name, l.Label, err)
		}
		info, err := p.GraphInfo(graph.GeometryNode, tx.Graph)
		if err != nil {
			return nil, fmt.Errorf("stack %q layer %q: %w", name, l.Label, err)
		}
		g, err := resolve(l.Label, info)
		if err != nil {
			return nil, fmt.Errorf("stack %q layer %q: %w", name, l.Label, err)
		}
		report, err := p.LoadGraph(graph.GeometryNode, l.Preset, g, LoadFull)
		if err != nil {
			return nil, fmt.Errorf("stack %q layer %q: %w", name, l.Label, err)
		}
		out = append(out, LoadedLayer{Label: l.Label, Graph: g, Report: report})
	}
	return out, nil
}
