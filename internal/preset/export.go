package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/codec"
	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// DocumentVersion is written to and required in every export document.
const DocumentVersion = 1

// Meta heads an export document.
type Meta struct {
	Name    string `json:"NAME"`
	Type    Type   `json:"TYPE"`
	Version int    `json:"VERSION"`
}

// Document is a self-contained export of one preset and every record it
// depends on.
type Document struct {
	Meta Meta `json:"META"`
	Data any  `json:"DATA"`
}

// Encode returns the indented JSON form of d.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// NodeData is an exported NodeRecord.
type NodeData struct {
	Address string      `json:"address,omitempty"`
	ID      hash.Digest `json:"id"`
	Name    string      `json:"name"`
	Kind    string      `json:"kind,omitempty"`
	Payload any         `json:"payload"`
}

// GraphData is the DATA of a graph preset document.
type GraphData struct {
	Name        string                `json:"name"`
	ID          hash.Digest           `json:"id"`
	Transaction []hash.Digest         `json:"transaction"`
	Group       GraphInfo             `json:"group"`
	NodeStack   NodeStack             `json:"node_stack"`
	Values      any                   `json:"values"`
	ValuesName  string                `json:"values_name,omitempty"`
	Nodes       map[string][]NodeData `json:"nodes"`
}

// StackData is the DATA of a modifier stack document.
type StackData struct {
	Name    string      `json:"name"`
	ID      hash.Digest `json:"id"`
	Labels  []string    `json:"labels"`
	Members []GraphData `json:"members"`
}

// SettingsData is the DATA of a physics settings document.
type SettingsData struct {
	ID       hash.Digest `json:"id"`
	Name     string      `json:"name"`
	Type     Type        `json:"type"`
	Settings any         `json:"settings"`
}

func document(t Type, name string, data any) *Document {
	return &Document{Meta: Meta{Name: name, Type: t, Version: DocumentVersion}, Data: data}
}

// ExportGraph exports graph preset id with its whole dependency closure.
func (p *Processor) ExportGraph(c graph.Class, id hash.Digest) (*Document, error) {
	gd, err := p.graphData(c, id)
	if err != nil {
		return nil, err
	}
	return document(TypeOf(c), gd.Name, gd), nil
}

func (p *Processor) graphData(c graph.Class, id hash.Digest) (*GraphData, error) {
	tx, err := p.ResolveGraph(c, id)
	if err != nil {
		return nil, err
	}
	info, err := p.GraphInfo(c, tx.Graph)
	if err != nil {
		return nil, err
	}
	valuesRec, err := p.st.Get(store.GraphTables(c).Data, tx.Values)
	if err != nil {
		return nil, err
	}
	values, err := valuesRec.Value()
	if err != nil {
		return nil, err
	}
	ns, err := p.nodeStack(tx.NodeStack)
	if err != nil {
		return nil, err
	}
	gd := &GraphData{
		Name:        tx.Name,
		ID:          tx.ID,
		Transaction: tx.parts(),
		Group:       *info,
		NodeStack:   ns,
		Values:      values,
		ValuesName:  valuesRec.Name,
		Nodes:       map[string][]NodeData{},
	}
	for kind, ids := range ns {
		addrs := info.Special[kind]
		for i, nid := range ids {
			nd, err := p.nodeData(nid)
			if err != nil {
				return nil, err
			}
			nd.Kind = ""
			if i < len(addrs) {
				nd.Address = addrs[i]
			}
			gd.Nodes[kind] = append(gd.Nodes[kind], *nd)
		}
	}
	return gd, nil
}

func (p *Processor) nodeData(id hash.Digest) (*NodeData, error) {
	state, rec, err := p.NodeState(id)
	if err != nil {
		return nil, err
	}
	return &NodeData{ID: id, Name: rec.Name, Kind: rec.Kind, Payload: state}, nil
}

// ExportStack exports modifier stack id with every member preset.
func (p *Processor) ExportStack(id hash.Digest) (*Document, error) {
	sp, name, err := p.Stack(id)
	if err != nil {
		return nil, err
	}
	sd := &StackData{Name: name, ID: id, Labels: []string{}, Members: []GraphData{}}
	for _, l := range sp.Layers {
		gd, err := p.graphData(graph.GeometryNode, l.Preset)
		if err != nil {
			return nil, fmt.Errorf("stack %q layer %q: %w", name, l.Label, err)
		}
		sd.Labels = append(sd.Labels, l.Label)
		sd.Members = append(sd.Members, *gd)
	}
	return document(TypeStack, name, sd), nil
}

// ExportNode exports node preset id.
func (p *Processor) ExportNode(id hash.Digest) (*Document, error) {
	nd, err := p.nodeData(id)
	if err != nil {
		return nil, err
	}
	return document(TypeNode, nd.Name, nd), nil
}

// ExportSettings exports physics settings id of type t.
func (p *Processor) ExportSettings(t Type, id hash.Digest) (*Document, error) {
	settings, name, err := p.LoadSettings(t, id)
	if err != nil {
		return nil, err
	}
	return document(t, name, &SettingsData{ID: id, Name: name, Type: t, Settings: settings}), nil
}

// ExportHair exports hair preset id.
func (p *Processor) ExportHair(id hash.Digest) (*Document, error) {
	h, err := p.LoadHair(id)
	if err != nil {
		return nil, err
	}
	return document(TypeHair, h.Name, h), nil
}

// Export exports preset id of any type.
func (p *Processor) Export(t Type, id hash.Digest) (*Document, error) {
	if c, ok := t.Class(); ok {
		return p.ExportGraph(c, id)
	}
	switch t {
	case TypeStack:
		return p.ExportStack(id)
	case TypeNode:
		return p.ExportNode(id)
	case TypeHair:
		return p.ExportHair(id)
	}
	if t.IsSettings() {
		return p.ExportSettings(t, id)
	}
	return nil, fmt.Errorf("unknown preset type %q", t)
}

var documentSchemaOnce = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling document schema: %w", err)
	}
	return s, nil
})

// validateDocument checks raw against the export document schema.
func validateDocument(raw []byte) error {
	s, err := documentSchemaOnce()
	if err != nil {
		return err
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &graph.ValidationError{Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return &graph.ValidationError{Problems: problems}
}

// Import stores every record of an export document. Records already
// present are left as they are. The top-level name is suffixed when taken,
// since it was chosen elsewhere.
func (p *Processor) Import(raw []byte) (*SaveResult, error) {
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	var env struct {
		Meta Meta            `json:"META"`
		Data json.RawMessage `json:"DATA"`
	}
	if err := decodeInto(raw, &env); err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var (
		res *SaveResult
		err error
	)
	t := env.Meta.Type
	switch {
	case t == TypeMaterial || t == TypeGeometry:
		var gd GraphData
		if err := decodeInto(env.Data, &gd); err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		c, _ := t.Class()
		res, err = p.importGraph(c, &gd)
	case t == TypeStack:
		var sd StackData
		if err := decodeInto(env.Data, &sd); err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		res, err = p.importStack(&sd)
	case t == TypeNode:
		var nd NodeData
		if err := decodeInto(env.Data, &nd); err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		res, err = p.importNode(&nd)
	case t.IsSettings():
		var sd SettingsData
		if err := decodeInto(env.Data, &sd); err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		res, err = p.importSettings(t, &sd)
	case t == TypeHair:
		var h Hair
		if err := decodeInto(env.Data, &h); err != nil {
			return nil, fmt.Errorf("reading document: %w", err)
		}
		res, err = p.importHair(&h)
	default:
		return nil, fmt.Errorf("unknown preset type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("importing %s %q: %w", t, env.Meta.Name, err)
	}
	p.log.Info("preset imported",
		zap.String("type", string(t)),
		zap.String("name", res.Name),
		zap.Bool("created", res.Created))
	return res, nil
}

func verify(what string, want hash.Digest, v any) ([]byte, error) {
	b, got, err := canonical(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if got != want {
		return nil, &IntegrityError{What: what, Want: want, Got: got}
	}
	return b, nil
}

// verifyNode checks that an imported node state is valid for its kind and
// hashes to its id.
func verifyNode(kind string, nd *NodeData) ([]byte, error) {
	what := fmt.Sprintf("node %q", nd.Name)
	b, err := verify(what, nd.ID, nd.Payload)
	if err != nil {
		return nil, err
	}
	scratch := &graph.Node{Kind: kind}
	if err := codec.Set(scratch, nd.Payload); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if _, err := verify(what, nd.ID, scratch.State); err != nil {
		return nil, err
	}
	return b, nil
}

// graphCapture rebuilds and verifies a capture from exported graph data.
func graphCapture(c graph.Class, gd *GraphData) (*capture, error) {
	if gd.Group.Class != c {
		return nil, fmt.Errorf("graph class is %s, document says %s", gd.Group.Class, c)
	}
	if len(gd.Transaction) != 3 {
		return nil, fmt.Errorf("transaction has %d parts", len(gd.Transaction))
	}
	if got := hash.Sequence(gd.Transaction); got != gd.ID {
		return nil, &IntegrityError{What: "preset " + gd.Name, Want: gd.ID, Got: got}
	}
	cp := &capture{
		class:      c,
		info:       gd.Group,
		graphID:    gd.Transaction[0],
		valuesID:   gd.Transaction[1],
		valuesName: gd.ValuesName,
		stackID:    gd.Transaction[2],
		txID:       gd.ID,
		stack:      gd.NodeStack,
		nodes:      map[string][]nodeState{},
	}
	if _, err := verify("graph structure", cp.graphID, gd.Group.Structure); err != nil {
		return nil, err
	}
	special, err := specialIndex(c, gd.Group.Structure)
	if err != nil {
		return nil, err
	}
	if err := sameSpecial(special, gd.Group.Special); err != nil {
		return nil, err
	}
	cp.info.Special = special
	if cp.values, err = verify("values", cp.valuesID, gd.Values); err != nil {
		return nil, err
	}
	if cp.stack == nil {
		cp.stack = NodeStack{}
	}
	if cp.stackBytes, err = verify("node stack", cp.stackID, cp.stack); err != nil {
		return nil, err
	}
	for kind, addrs := range special {
		if len(cp.stack[kind]) != len(addrs) {
			return nil, fmt.Errorf("%s: node stack lists %d nodes, graph structure has %d", kind, len(cp.stack[kind]), len(addrs))
		}
	}
	for kind, ids := range cp.stack {
		if !graph.IsSpecial(c, kind) {
			return nil, fmt.Errorf("node kind %s is not stored for %s graphs", kind, c)
		}
		if len(ids) != len(special[kind]) {
			return nil, fmt.Errorf("%s: node stack lists %d nodes, graph structure has %d", kind, len(ids), len(special[kind]))
		}
		nodes := gd.Nodes[kind]
		if len(nodes) != len(ids) {
			return nil, fmt.Errorf("%s: node stack lists %d nodes, document has %d", kind, len(ids), len(nodes))
		}
		for i := range nodes {
			nd := &nodes[i]
			if nd.ID != ids[i] {
				return nil, &IntegrityError{What: fmt.Sprintf("%s node %d", kind, i), Want: ids[i], Got: nd.ID}
			}
			payload, err := verifyNode(kind, nd)
			if err != nil {
				return nil, err
			}
			cp.nodes[kind] = append(cp.nodes[kind], nodeState{name: nd.Name, payload: payload, id: nd.ID})
		}
	}
	return cp, nil
}

// specialIndex rebuilds the kind to addresses index of a verified graph
// structure.
func specialIndex(c graph.Class, structure any) (map[string][]string, error) {
	b, err := json.Marshal(structure)
	if err != nil {
		return nil, fmt.Errorf("graph structure: %w", err)
	}
	var doc graph.SignatureDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("graph structure: %w", err)
	}
	if len(doc.Indices) != len(doc.Types) {
		return nil, fmt.Errorf("graph structure has %d indices for %d types", len(doc.Indices), len(doc.Types))
	}
	out := map[string][]string{}
	for i, kind := range doc.Types {
		if graph.IsSpecial(c, kind) {
			out[kind] = append(out[kind], doc.Indices[i].String())
		}
	}
	return out, nil
}

// sameSpecial reports an IntegrityError when a document's special index
// differs from the one its structure implies. Empty entries are ignored.
func sameSpecial(rebuilt, claimed map[string][]string) error {
	match := true
	for kind, addrs := range claimed {
		if len(addrs) > 0 && len(rebuilt[kind]) == 0 {
			match = false
		}
	}
	for kind, addrs := range rebuilt {
		if !slices.Equal(addrs, claimed[kind]) {
			match = false
		}
	}
	if match {
		return nil
	}
	claimedID, err := hash.Value(claimed)
	if err != nil {
		return fmt.Errorf("special nodes: %w", err)
	}
	rebuiltID, err := hash.Value(rebuilt)
	if err != nil {
		return err
	}
	return &IntegrityError{What: "special nodes", Want: claimedID, Got: rebuiltID}
}

func (p *Processor) importGraph(c graph.Class, gd *GraphData) (*SaveResult, error) {
	cp, err := graphCapture(c, gd)
	if err != nil {
		return nil, err
	}
	return p.storeCapture(cp, gd.Name, true)
}

func (p *Processor) importStack(sd *StackData) (*SaveResult, error) {
	if len(sd.Labels) != len(sd.Members) {
		return nil, fmt.Errorf("stack has %d labels for %d members", len(sd.Labels), len(sd.Members))
	}
	payload := StackPayload{}
	captures := make([]*capture, len(sd.Members))
	for i := range sd.Members {
		cp, err := graphCapture(graph.GeometryNode, &sd.Members[i])
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", sd.Labels[i], err)
		}
		captures[i] = cp
		payload.Layers = append(payload.Layers, StackLayer{Label: sd.Labels[i], Preset: cp.txID})
	}
	if got := stackID(payload.Layers); got != sd.ID {
		return nil, &IntegrityError{What: "modifier stack " + sd.Name, Want: sd.ID, Got: got}
	}
	b, err := hash.Canonical(payload)
	if err != nil {
		return nil, err
	}
	var res *SaveResult
	err = p.update(func(tx *Processor) error {
		for i, cp := range captures {
			if _, err := tx.storeCapture(cp, sd.Members[i].Name, true); err != nil {
				return err
			}
		}
		var err error
		res, err = tx.putTop(TypeStack, store.ModStack, store.NewRecord{ID: sd.ID, Name: sd.Name, Payload: b}, true, nil)
		return err
	})
	return res, err
}

func (p *Processor) importNode(nd *NodeData) (*SaveResult, error) {
	if _, err := codec.Lookup(nd.Kind); err != nil {
		return nil, err
	}
	payload, err := verifyNode(nd.Kind, nd)
	if err != nil {
		return nil, err
	}
	rec := store.NewRecord{ID: nd.ID, Name: nd.Name, Kind: nd.Kind, Payload: payload}
	return p.putTop(TypeNode, store.Nodes, rec, true, func(tx *Processor, _ string) error {
		return tx.st.IndexKind(nd.Kind, nd.ID)
	})
}

func (p *Processor) importSettings(t Type, sd *SettingsData) (*SaveResult, error) {
	if sd.Type != t {
		return nil, fmt.Errorf("settings type is %s, document says %s", sd.Type, t)
	}
	payload, err := verify("settings "+sd.Name, sd.ID, sd.Settings)
	if err != nil {
		return nil, err
	}
	tbl, err := t.Table()
	if err != nil {
		return nil, err
	}
	return p.putTop(t, tbl, store.NewRecord{ID: sd.ID, Name: sd.Name, Kind: string(t), Payload: payload}, true, nil)
}

func (p *Processor) importHair(h *Hair) (*SaveResult, error) {
	sizes := make([]int, len(h.Sizes))
	for i, s := range h.Sizes {
		sizes[i] = int(s)
	}
	if _, err := checkSizes(sizes, len(h.Points)); err != nil {
		return nil, err
	}
	got, err := hairID(h.Points, h.Sizes)
	if err != nil {
		return nil, err
	}
	if got != h.ID {
		return nil, &IntegrityError{What: "hair " + h.Name, Want: h.ID, Got: got}
	}
	return p.putHair(h.ID, h.Name, h.Points, h.Sizes, true)
}

// Decode parses an export document without importing it.
func Decode(raw []byte) (*Document, error) {
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	var d Document
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	return &d, nil
}
