package preset

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/codec"
	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// GraphInfo is the payload of a GraphIdentity record.
type GraphInfo struct {
	Name      string              `json:"name"`
	Class     graph.Class         `json:"class"`
	Owner     string              `json:"owner"`
	Special   map[string][]string `json:"special"`
	Structure any                 `json:"structure"`
}

// NodeStack maps a special node kind to its NodeRecord ids in scan order.
type NodeStack map[string][]hash.Digest

// Transaction is a resolved PresetTransaction.
type Transaction struct {
	Class     graph.Class `json:"class"`
	ID        hash.Digest `json:"id"`
	Name      string      `json:"name"`
	Graph     hash.Digest `json:"graph"`
	Values    hash.Digest `json:"values"`
	NodeStack hash.Digest `json:"node_stack"`
}

func (t *Transaction) parts() []hash.Digest {
	return []hash.Digest{t.Graph, t.Values, t.NodeStack}
}

// LoadMode selects how much of a graph preset is applied.
type LoadMode int

const (
	// LoadValues applies the flat values only.
	LoadValues LoadMode = iota
	// LoadFull also restores every special node state.
	LoadFull
)

// LoadReport describes what a load applied.
type LoadReport struct {
	Name    string   `json:"name"`
	Skipped []string `json:"skipped,omitempty"`
	Nodes   int      `json:"nodes"`
}

// capture is everything a save extracts from a live graph.
type capture struct {
	class      graph.Class
	info       GraphInfo
	graphID    hash.Digest
	values     []byte
	valuesID   hash.Digest
	valuesName string
	nodes      map[string][]nodeState
	stack      NodeStack
	stackBytes []byte
	stackID    hash.Digest
	txID       hash.Digest
}

type nodeState struct {
	addr    graph.Address
	name    string
	payload []byte
	id      hash.Digest
}

func captureGraph(c graph.Class, g *graph.Graph) (*capture, error) {
	doc, err := graph.Structure(g)
	if err != nil {
		return nil, fmt.Errorf("scanning graph %q: %w", g.Name, err)
	}
	cp := &capture{class: c, nodes: map[string][]nodeState{}, stack: NodeStack{}}
	if cp.graphID, err = hash.Value(doc); err != nil {
		return nil, err
	}
	special := graph.ClassifySpecialNodes(c, g)
	cp.info = GraphInfo{Name: g.Name, Class: c, Owner: g.Owner, Special: map[string][]string{}, Structure: doc}
	for kind, addrs := range special {
		for _, addr := range addrs {
			cp.info.Special[kind] = append(cp.info.Special[kind], addr.String())
		}
	}

	values, err := graph.FlatValues(c, g)
	if err != nil {
		return nil, err
	}
	if cp.values, cp.valuesID, err = canonical(values); err != nil {
		return nil, fmt.Errorf("graph values: %w", err)
	}

	for _, kind := range graph.SpecialKinds(c) {
		for _, addr := range special[kind] {
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
				return nil, fmt.Errorf("node %s: %w", addr, err)
			}
			cp.nodes[kind] = append(cp.nodes[kind], nodeState{addr: addr, payload: payload, id: id})
			cp.stack[kind] = append(cp.stack[kind], id)
		}
	}
	if cp.stackBytes, cp.stackID, err = canonical(cp.stack); err != nil {
		return nil, err
	}
	cp.txID = hash.Sequence([]hash.Digest{cp.graphID, cp.valuesID, cp.stackID})
	return cp, nil
}

// SaveGraph stores the current state of g as a preset named name. Saving a
// state that is already stored creates nothing and reports the existing
// name; a new state under a taken name is a NameExistsError.
func (p *Processor) SaveGraph(c graph.Class, g *graph.Graph, name string) (*SaveResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return p.saveGraph(c, g, name, false)
}

// saveGraph captures g and writes every record it needs. With autoName a
// taken top-level name is replaced by the next name of its series instead
// of failing.
func (p *Processor) saveGraph(c graph.Class, g *graph.Graph, name string, autoName bool) (*SaveResult, error) {
	cp, err := captureGraph(c, g)
	if err != nil {
		return nil, err
	}
	return p.storeCapture(cp, name, autoName)
}

// storeCapture writes cp under the top-level name.
func (p *Processor) storeCapture(cp *capture, name string, autoName bool) (*SaveResult, error) {
	c := cp.class
	res := &SaveResult{Type: TypeOf(c), ID: cp.txID, Name: name}
	tables := store.GraphTables(c)
	err := p.update(func(tx *Processor) error {
		if !autoName {
			existing, exists, err := tx.checkTopName(tables.Transactions, cp.txID, name)
			if err != nil {
				return err
			}
			if exists {
				res.Name = existing
				return nil
			}
		}
		created, stored, err := tx.writeCapture(cp, name)
		res.Created, res.Name = created, stored
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Created {
		p.log.Info("preset saved",
			zap.String("type", string(res.Type)),
			zap.String("name", res.Name),
			zap.String("id", res.ID.Short()))
	}
	return res, nil
}

// writeCapture creates every missing record of cp. The transaction itself
// is created with PutIfAbsent, so a taken name is suffixed; callers that
// must not rename check the name first.
func (p *Processor) writeCapture(cp *capture, name string) (bool, string, error) {
	tables := store.GraphTables(cp.class)
	info := cp.info
	if info.Name == "" {
		info.Name = name
	}
	if info.Owner == "" {
		info.Owner = p.owner
	}
	infoBytes, err := hash.Canonical(info)
	if err != nil {
		return false, "", err
	}
	if _, _, err := p.st.PutIfAbsent(tables.Info, store.NewRecord{
		ID: cp.graphID, Name: info.Name, Class: string(cp.class), Owner: info.Owner, Payload: infoBytes,
	}); err != nil {
		return false, "", err
	}
	valuesName := cp.valuesName
	if valuesName == "" {
		valuesName = name
	}
	if _, _, err := p.st.PutIfAbsent(tables.Data, store.NewRecord{
		ID: cp.valuesID, Name: valuesName, Class: string(cp.class), Payload: cp.values,
	}); err != nil {
		return false, "", err
	}
	for _, kind := range graph.SpecialKinds(cp.class) {
		for _, n := range cp.nodes[kind] {
			if _, err := p.putNode(kind, n.id, n.name, n.payload); err != nil {
				return false, "", err
			}
		}
	}
	if _, _, err := p.st.PutIfAbsent(store.NodeStack, store.NewRecord{
		ID: cp.stackID, Class: string(cp.class), Payload: cp.stackBytes,
	}); err != nil {
		return false, "", err
	}
	txBytes, err := hash.Canonical([]hash.Digest{cp.graphID, cp.valuesID, cp.stackID})
	if err != nil {
		return false, "", err
	}
	created, stored, err := p.st.PutIfAbsent(tables.Transactions, store.NewRecord{
		ID: cp.txID, Name: name, Class: string(cp.class), Owner: info.Owner, Payload: txBytes,
	})
	if err != nil {
		return false, "", err
	}
	if _, err := p.st.Link(tables.Full, cp.graphID, cp.txID); err != nil {
		return false, "", err
	}
	if _, err := p.st.Link(tables.Values, cp.graphID, cp.valuesID); err != nil {
		return false, "", err
	}
	return created, stored, nil
}

// putNode creates a NodeRecord if absent and adds it to its kind index.
// An empty name means the suggested "{abbrev}_{count}".
func (p *Processor) putNode(kind string, id hash.Digest, name string, payload []byte) (string, error) {
	if name == "" {
		var err error
		if name, err = p.SuggestNodeName(kind); err != nil {
			return "", err
		}
	}
	_, stored, err := p.st.PutIfAbsent(store.Nodes, store.NewRecord{ID: id, Name: name, Kind: kind, Payload: payload})
	if err != nil {
		return "", err
	}
	return stored, p.st.IndexKind(kind, id)
}

// SuggestNodeName returns the default display name for the next saved node
// of kind: its abbreviation and the number of nodes of that kind so far.
func (p *Processor) SuggestNodeName(kind string) (string, error) {
	n, err := p.st.KindCount(kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%d", codec.Abbrev(kind), n), nil
}

// ResolveGraph returns the parts of graph preset id.
func (p *Processor) ResolveGraph(c graph.Class, id hash.Digest) (*Transaction, error) {
	rec, err := p.st.Get(store.GraphTables(c).Transactions, id)
	if err != nil {
		return nil, err
	}
	var parts []hash.Digest
	if err := decodeInto(rec.Payload, &parts); err != nil {
		return nil, fmt.Errorf("preset %s: %w", id.Short(), err)
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("preset %s: expected 3 parts, got %d", id.Short(), len(parts))
	}
	return &Transaction{Class: c, ID: id, Name: rec.Name, Graph: parts[0], Values: parts[1], NodeStack: parts[2]}, nil
}

// GraphInfo returns the GraphIdentity record graphID of class c.
func (p *Processor) GraphInfo(c graph.Class, graphID hash.Digest) (*GraphInfo, error) {
	rec, err := p.st.Get(store.GraphTables(c).Info, graphID)
	if err != nil {
		return nil, err
	}
	var info GraphInfo
	if err := decodeInto(rec.Payload, &info); err != nil {
		return nil, fmt.Errorf("graph %s: %w", graphID.Short(), err)
	}
	return &info, nil
}

func (p *Processor) nodeStack(id hash.Digest) (NodeStack, error) {
	rec, err := p.st.Get(store.NodeStack, id)
	if err != nil {
		return nil, err
	}
	var ns NodeStack
	if err := decodeInto(rec.Payload, &ns); err != nil {
		return nil, fmt.Errorf("node stack %s: %w", id.Short(), err)
	}
	return ns, nil
}

// LoadGraph applies preset id to g. LoadValues writes the flat values;
// LoadFull first checks that g still has the saved topology, then also
// restores every special node.
func (p *Processor) LoadGraph(c graph.Class, id hash.Digest, g *graph.Graph, mode LoadMode) (*LoadReport, error) {
	tx, err := p.ResolveGraph(c, id)
	if err != nil {
		return nil, err
	}
	if mode == LoadFull {
		sig, err := graph.Signature(g)
		if err != nil {
			return nil, err
		}
		if sig != tx.Graph {
			return nil, fmt.Errorf("loading %q onto %q: %w", tx.Name, g.Name, ErrTopologyChanged)
		}
	}

	values, err := p.Values(c, tx.Values)
	if err != nil {
		return nil, err
	}
	skipped, err := graph.ApplyValues(c, g, values)
	if err != nil {
		return nil, fmt.Errorf("applying values of %q: %w", tx.Name, err)
	}
	report := &LoadReport{Name: tx.Name, Skipped: skipped}
	if mode == LoadFull {
		if report.Nodes, err = p.applyNodeStack(c, g, tx.NodeStack); err != nil {
			return nil, fmt.Errorf("applying nodes of %q: %w", tx.Name, err)
		}
	}
	if len(skipped) > 0 {
		p.log.Warn("values skipped", zap.String("preset", tx.Name), zap.Strings("entries", skipped))
	}
	return report, nil
}

func (p *Processor) applyNodeStack(c graph.Class, g *graph.Graph, stackID hash.Digest) (int, error) {
	ns, err := p.nodeStack(stackID)
	if err != nil {
		return 0, err
	}
	special := graph.ClassifySpecialNodes(c, g)
	applied := 0
	for _, kind := range graph.SpecialKinds(c) {
		ids, addrs := ns[kind], special[kind]
		if len(ids) != len(addrs) {
			return applied, fmt.Errorf("%s: stored %d nodes, graph has %d: %w", kind, len(ids), len(addrs), ErrTopologyChanged)
		}
		for i, id := range ids {
			node, err := g.Resolve(addrs[i])
			if err != nil {
				return applied, err
			}
			if err := p.LoadNode(id, node); err != nil {
				return applied, fmt.Errorf("node %s: %w", addrs[i], err)
			}
			applied++
		}
	}
	return applied, nil
}

// Values returns the payload of ValuesRecord id.
func (p *Processor) Values(c graph.Class, id hash.Digest) (any, error) {
	rec, err := p.st.Get(store.GraphTables(c).Data, id)
	if err != nil {
		return nil, err
	}
	return rec.Value()
}

// PresetsForGraph lists every preset saved for GraphIdentity graphID.
func (p *Processor) PresetsForGraph(c graph.Class, graphID hash.Digest) ([]store.Entry, error) {
	t := store.GraphTables(c)
	return p.linkedEntries(t.Full, t.Transactions, graphID)
}

// ValuesForGraph lists every ValuesRecord saved for GraphIdentity graphID.
func (p *Processor) ValuesForGraph(c graph.Class, graphID hash.Digest) ([]store.Entry, error) {
	t := store.GraphTables(c)
	return p.linkedEntries(t.Values, t.Data, graphID)
}

func (p *Processor) linkedEntries(link, records store.Table, owner hash.Digest) ([]store.Entry, error) {
	ids, err := p.st.Linked(link, owner)
	if err != nil {
		return nil, err
	}
	out := make([]store.Entry, 0, len(ids))
	for _, id := range ids {
		name, err := p.st.NameOf(records, id)
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, store.Entry{ID: id, Name: name})
	}
	return out, nil
}
