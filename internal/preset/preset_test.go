package preset

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/codec"
	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/session"
	"github.com/Morzio/Hair-Factory/internal/store"
)

func setupTestProcessor(t *testing.T) *Processor {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, "USER", session.New(), zap.NewNop())
}

const materialTemplate = `
name: HF_Skin
owner: HAIR_FACTORY
nodes:
  - name: Principled
    kind: BSDF_PRINCIPLED
    inputs:
      - {name: Base Color, value: [0.8, 0.1, 0.1, 1.0]}
      - {name: Roughness, value: %v}
  - {name: Output, kind: OUTPUT_MATERIAL}
  - name: Ramp
    kind: VALTORGB
    state:
      color: [[0, 0, 0, 1], [1, 1, 1, 1]]
      position: [0.0, %v]
  - name: Tint
    kind: GROUP
    inputs:
      - {name: Strength, value: 0.5}
    group:
      name: TintGroup
      nodes:
        - {name: In, kind: GROUP_INPUT}
        - name: Mix
          kind: MIX
          inputs:
            - {name: Fac, value: 0.25}
        - {name: Color, kind: RGB, state: {color: [1, 0, 0, 1]}}
        - {name: Out, kind: GROUP_OUTPUT}
      links:
        - {from: 0, from_socket: Color, to: 1, to_socket: A}
        - {from: 1, from_socket: Result, to: 3, to_socket: Color}
links:
  - {from: 2, from_socket: Color, to: 0, to_socket: Base Color}
  - {from: 0, from_socket: BSDF, to: 1, to_socket: Surface}
`

// material builds the test material with a roughness value and the
// position of the ramp's last stop.
func material(t *testing.T, roughness, rampEnd float64) *graph.Graph {
	t.Helper()
	g, err := graph.Parse([]byte(fmt.Sprintf(materialTemplate, roughness, rampEnd)))
	require.NoError(t, err)
	return g
}

const geometryTemplate = `
name: HF_Curls
owner: HAIR_FACTORY
interface: {Density: %v, Seed: 3}
nodes:
  - {name: In, kind: GROUP_INPUT}
  - name: Profile
    kind: CURVE_FLOAT
    state:
      location: [[0, 0], [%v, 1]]
      handle_type: [AUTO, VECTOR]
  - {name: Tint, kind: INPUT_COLOR, state: {value: [0.2, 0.1, 0.05, 1]}}
  - {name: Out, kind: GROUP_OUTPUT}
links:
  - {from: 0, from_socket: Geometry, to: 3, to_socket: Geometry}
`

func geometry(t *testing.T, density, curveEnd float64) *graph.Graph {
	t.Helper()
	g, err := graph.Parse([]byte(fmt.Sprintf(geometryTemplate, density, curveEnd)))
	require.NoError(t, err)
	return g
}

func count(t *testing.T, p *Processor, tbl store.Table) int {
	t.Helper()
	n, err := p.Store().Count(tbl)
	require.NoError(t, err)
	return n
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"Red_Skin", true},
		{"Curly.001", true},
		{"", false},
		{"two words", false},
		{"tab\there", false},
		{"NONE", false},
		{"none", false},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateName(%q) = %v, want ok=%v", tt.name, err, tt.ok)
		}
		var ine *InvalidNameError
		if err != nil && !errors.As(err, &ine) {
			t.Errorf("ValidateName(%q) returned %T", tt.name, err)
		}
	}
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"material": TypeMaterial, "geometry": TypeGeometry, "stack": TypeStack,
		"node": TypeNode, "soft-body": TypeSoftBody, "COLLISION": TypeCollision, "hair": TypeHair,
	} {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseType("fluid")
	require.Error(t, err)
	for _, typ := range Types {
		_, err := typ.Table()
		require.NoError(t, err, typ)
	}
}

func TestSaveGraph_Idempotent(t *testing.T) {
	p := setupTestProcessor(t)
	first, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.ID, second.ID)

	tables := store.GraphTables(graph.Material)
	require.Equal(t, 1, count(t, p, tables.Transactions))
	require.Equal(t, 1, count(t, p, tables.Data))
	require.Equal(t, 1, count(t, p, tables.Info))
	require.Equal(t, 2, count(t, p, store.Nodes), "one ramp and one color")
}

func TestSaveGraph_SameContentOtherName(t *testing.T) {
	p := setupTestProcessor(t)
	first, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)

	// content wins over the requested name
	again, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin_2")
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, "Red_Skin", again.Name)
}

func TestSaveGraph_NameTaken(t *testing.T) {
	p := setupTestProcessor(t)
	_, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)

	_, err = p.SaveGraph(graph.Material, material(t, 0.9, 1), "Red_Skin")
	var ne *store.NameExistsError
	require.True(t, errors.As(err, &ne), "got %v", err)

	tables := store.GraphTables(graph.Material)
	require.Equal(t, 1, count(t, p, tables.Data), "failed save writes nothing")
	require.Equal(t, 1, count(t, p, tables.Transactions))
}

func TestSaveGraph_InvalidName(t *testing.T) {
	p := setupTestProcessor(t)
	_, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "NONE")
	var ine *InvalidNameError
	require.True(t, errors.As(err, &ine))
}

func TestSaveGraph_StructuralEquivalence(t *testing.T) {
	p := setupTestProcessor(t)
	p1, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	p2, err := p.SaveGraph(graph.Material, material(t, 0.6, 1), "Red_Skin_Bold")
	require.NoError(t, err)
	require.True(t, p2.Created)

	t1, err := p.ResolveGraph(graph.Material, p1.ID)
	require.NoError(t, err)
	t2, err := p.ResolveGraph(graph.Material, p2.ID)
	require.NoError(t, err)
	require.Equal(t, t1.Graph, t2.Graph, "same topology")
	require.NotEqual(t, t1.Values, t2.Values)
	require.Equal(t, t1.NodeStack, t2.NodeStack, "special nodes unchanged")

	presets, err := p.PresetsForGraph(graph.Material, t1.Graph)
	require.NoError(t, err)
	require.Equal(t, []store.Entry{{ID: p1.ID, Name: "Red_Skin"}, {ID: p2.ID, Name: "Red_Skin_Bold"}}, presets)

	values, err := p.ValuesForGraph(graph.Material, t1.Graph)
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.Equal(t, t1.Values, values[0].ID)
	require.Equal(t, t2.Values, values[1].ID)
}

func TestSaveGraph_ReusesValues(t *testing.T) {
	p := setupTestProcessor(t)
	a, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "A")
	require.NoError(t, err)
	// only the ramp differs: new node record, same values record
	b, err := p.SaveGraph(graph.Material, material(t, 0.4, 0.5), "B")
	require.NoError(t, err)
	require.True(t, b.Created)

	ta, _ := p.ResolveGraph(graph.Material, a.ID)
	tb, _ := p.ResolveGraph(graph.Material, b.ID)
	require.Equal(t, ta.Values, tb.Values)
	require.NotEqual(t, ta.NodeStack, tb.NodeStack)
	require.Equal(t, 1, count(t, p, store.GraphTables(graph.Material).Data))

	name, err := p.Store().NameOf(store.GraphTables(graph.Material).Data, ta.Values)
	require.NoError(t, err)
	require.Equal(t, "A", name, "values keep their first name")

	ramps, err := p.NodeNames("VALTORGB", "")
	require.NoError(t, err)
	require.Len(t, ramps, 2)
	require.Equal(t, "CR_0", ramps[0].Name)
	require.Equal(t, "CR_1", ramps[1].Name)

	colors, err := p.NodeNames("RGB", "RB")
	require.NoError(t, err)
	require.Len(t, colors, 1)
}

func TestRename(t *testing.T) {
	p := setupTestProcessor(t)
	p1, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	_, err = p.SaveGraph(graph.Material, material(t, 0.6, 1), "Red_Skin_v2")
	require.NoError(t, err)

	_, err = p.Rename(TypeMaterial, p1.ID, "Red_Skin_v2")
	var ne *store.NameExistsError
	require.True(t, errors.As(err, &ne))
	tx, err := p.ResolveGraph(graph.Material, p1.ID)
	require.NoError(t, err)
	require.Equal(t, "Red_Skin", tx.Name)

	old, err := p.Rename(TypeMaterial, p1.ID, "Red_Skin_Soft")
	require.NoError(t, err)
	require.Equal(t, "Red_Skin", old)
	names, err := p.Names(TypeMaterial)
	require.NoError(t, err)
	require.Equal(t, []string{"Red_Skin_Soft", "Red_Skin_v2"}, names)

	hits, err := p.Search(TypeMaterial, "Soft")
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestLoadGraph(t *testing.T) {
	p := setupTestProcessor(t)
	saved, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	want, err := codec.Get(mustResolve(t, material(t, 0.4, 1), "2"))
	require.NoError(t, err)

	live := material(t, 0.9, 0.5)
	report, err := p.LoadGraph(graph.Material, saved.ID, live, LoadValues)
	require.NoError(t, err)
	require.Equal(t, "Red_Skin", report.Name)
	require.Empty(t, report.Skipped)
	require.Zero(t, report.Nodes)
	require.EqualValues(t, 0.4, live.Nodes[0].Inputs[1].Value)
	ramp, _ := codec.Get(live.Nodes[2])
	require.NotEqual(t, hashOf(t, want), hashOf(t, ramp), "values-only load leaves the ramp")

	report, err = p.LoadGraph(graph.Material, saved.ID, live, LoadFull)
	require.NoError(t, err)
	require.Equal(t, 2, report.Nodes)
	ramp, _ = codec.Get(live.Nodes[2])
	require.Equal(t, hashOf(t, want), hashOf(t, ramp))
}

func TestLoadGraph_TopologyChanged(t *testing.T) {
	p := setupTestProcessor(t)
	saved, err := p.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)

	live := material(t, 0.4, 1)
	live.Nodes = append(live.Nodes, &graph.Node{Kind: "MIX"})
	_, err = p.LoadGraph(graph.Material, saved.ID, live, LoadFull)
	require.ErrorIs(t, err, ErrTopologyChanged)

	// values still apply to the changed graph
	_, err = p.LoadGraph(graph.Material, saved.ID, live, LoadValues)
	require.NoError(t, err)
}

func TestLoadGraph_NotFound(t *testing.T) {
	p := setupTestProcessor(t)
	_, err := p.LoadGraph(graph.Material, "missing", material(t, 0.4, 1), LoadValues)
	var nf *store.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestGeometryGraph(t *testing.T) {
	p := setupTestProcessor(t)
	saved, err := p.SaveGraph(graph.GeometryNode, geometry(t, 0.5, 1), "Curly")
	require.NoError(t, err)

	values, err := p.Values(graph.GeometryNode, mustTx(t, p, graph.GeometryNode, saved.ID).Values)
	require.NoError(t, err)
	if diff := cmp.Diff(map[string]any{"Density": 0.5, "Seed": int64(3)}, hash.Native(values)); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	live := geometry(t, 2, 0.5)
	report, err := p.LoadGraph(graph.GeometryNode, saved.ID, live, LoadFull)
	require.NoError(t, err)
	require.Equal(t, 2, report.Nodes)
	require.EqualValues(t, 0.5, live.Interface["Density"])

	fc, err := p.NodeNames("CURVE_FLOAT", "")
	require.NoError(t, err)
	require.Equal(t, "FC_0", fc[0].Name)
	ic, err := p.NodeNames("INPUT_COLOR", "")
	require.NoError(t, err)
	require.Equal(t, "IC_0", ic[0].Name)
}

func TestSaveStack(t *testing.T) {
	p := setupTestProcessor(t)
	st := &graph.Stack{Layers: []graph.Layer{
		{Label: "base", Graph: geometry(t, 0.5, 1)},
		{Label: "detail", Graph: geometry(t, 0.8, 0.3)},
	}}
	res, members, err := p.SaveStack(st, "Curly")
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Len(t, members, 2)
	require.Equal(t, "Curly_base", members[0].Name)
	require.Equal(t, "Curly_detail", members[1].Name)
	require.Equal(t, hash.Sequence([]hash.Digest{members[0].ID, members[1].ID}), res.ID)

	again, _, err := p.SaveStack(st, "Curly")
	require.NoError(t, err)
	require.False(t, again.Created)

	// a different stack under a taken name rolls back its members
	other := &graph.Stack{Layers: []graph.Layer{{Label: "x", Graph: geometry(t, 9, 1)}}}
	_, _, err = p.SaveStack(other, "Curly")
	var ne *store.NameExistsError
	require.True(t, errors.As(err, &ne))
	require.Equal(t, 2, count(t, p, store.GraphTables(graph.GeometryNode).Transactions))

	var labels []string
	layers, err := p.LoadStack(res.ID, func(label string, info *GraphInfo) (*graph.Graph, error) {
		labels = append(labels, label)
		require.Equal(t, "HF_Curls", info.Name)
		require.Equal(t, "HAIR_FACTORY", info.Owner)
		return geometry(t, 0, 0.9), nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"base", "detail"}, labels)
	require.EqualValues(t, 0.5, layers[0].Graph.Interface["Density"])
	require.EqualValues(t, 0.8, layers[1].Graph.Interface["Density"])
}

func TestSaveStack_MissingGraph(t *testing.T) {
	p := setupTestProcessor(t)
	st := &graph.Stack{Layers: []graph.Layer{
		{Label: "base", Graph: geometry(t, 0.5, 1)},
		{Label: "detail"},
	}}
	_, _, err := p.SaveStack(st, "Curly")
	require.ErrorContains(t, err, `layer "detail"`)
	require.Zero(t, count(t, p, store.GraphTables(graph.GeometryNode).Transactions), "nothing written")

	_, _, err = p.SaveStack(nil, "Curly")
	require.Error(t, err)
}

func TestNodePresets(t *testing.T) {
	p := setupTestProcessor(t)
	g := material(t, 0.4, 0.7)
	res, err := p.SaveNode(g, graph.Address{2}, "Soft_Ramp")
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, TypeNode, res.Type)

	again, err := p.SaveNode(g, graph.Address{2}, "Other")
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, "Soft_Ramp", again.Name)

	_, err = p.SaveNode(material(t, 0.4, 0.2), graph.Address{2}, "Soft_Ramp")
	var ne *store.NameExistsError
	require.True(t, errors.As(err, &ne))

	// nested address
	color, err := p.SaveNode(g, graph.Address{3, 2}, "Pure_Red")
	require.NoError(t, err)
	require.True(t, color.Created)

	target := material(t, 0.4, 1).Nodes[2]
	require.NoError(t, p.LoadNode(res.ID, target))
	want, _ := codec.Get(g.Nodes[2])
	got, _ := codec.Get(target)
	require.Equal(t, hashOf(t, want), hashOf(t, got))

	err = p.LoadNode(color.ID, target)
	require.Error(t, err, "kind mismatch")

	ramps, err := p.NodeNames("VALTORGB", "Soft")
	require.NoError(t, err)
	require.Equal(t, []store.Entry{{ID: res.ID, Name: "Soft_Ramp"}}, ramps)

	suggested, err := p.SuggestNodeName("VALTORGB")
	require.NoError(t, err)
	require.Equal(t, "CR_1", suggested)
}

func TestSettings(t *testing.T) {
	p := setupTestProcessor(t)
	cloth := map[string]any{"mass": 0.3, "quality": 5, "pin_group": "Pin"}
	res, err := p.SaveSettings(TypeCloth, cloth, "Silk")
	require.NoError(t, err)
	require.True(t, res.Created)

	got, name, err := p.LoadSettings(TypeCloth, res.ID)
	require.NoError(t, err)
	require.Equal(t, "Silk", name)
	if diff := cmp.Diff(map[string]any{"mass": 0.3, "quality": int64(5), "pin_group": "Pin"}, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}

	// same name in another physics table is fine
	_, err = p.SaveSettings(TypeCollision, map[string]any{"thickness_outer": 0.02}, "Silk")
	require.NoError(t, err)

	_, err = p.SaveSettings(TypeCloth, map[string]any{"mass": 1.0}, "Silk")
	var ne *store.NameExistsError
	require.True(t, errors.As(err, &ne))

	_, err = p.SaveSettings(TypeHair, cloth, "X")
	require.Error(t, err)
	_, err = p.SaveSettings(TypeCloth, map[string]any{}, "Empty")
	require.Error(t, err)

	_, _, err = p.LoadSettings(TypeSoftBody, res.ID)
	var nf *store.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestHair(t *testing.T) {
	p := setupTestProcessor(t)
	points := [][3]float32{{0, 0, 0}, {0, 0, 0.1}, {0, 0, 0.2}, {1, 0, 0}, {1, 0, 0.3}}
	res, err := p.SaveHair(points, []int{3, 2}, "Bob")
	require.NoError(t, err)
	require.True(t, res.Created)

	_, err = p.SaveHair(points, []int{3, 3}, "Bad")
	require.Error(t, err)
	_, err = p.SaveHair(points, []int{-1, 6}, "Bad")
	require.Error(t, err)

	h, err := p.LoadHair(res.ID)
	require.NoError(t, err)
	require.Equal(t, "Bob", h.Name)
	require.Equal(t, points, h.Points)
	require.Equal(t, []uint16{3, 2}, h.Sizes)

	old, err := p.Rename(TypeHair, res.ID, "Bobbed")
	require.NoError(t, err)
	require.Equal(t, "Bob", old)
	sizesName, err := p.Store().NameOf(store.HairSizes, res.ID)
	require.NoError(t, err)
	require.Equal(t, "Bobbed", sizesName, "both hair tables renamed")
}

func TestPreview(t *testing.T) {
	p := setupTestProcessor(t)
	saved, err := p.SaveNode(material(t, 0.4, 0.3), graph.Address{2}, "Short")
	require.NoError(t, err)

	node := material(t, 0.4, 1).Nodes[2]
	original, _ := codec.Get(node)
	h := session.NewHandle()

	ok, err := p.BeginNodePreview(h, node, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, p.IsPreviewing(h))
	shown, _ := codec.Get(node)
	require.NotEqual(t, hashOf(t, original), hashOf(t, shown))

	require.NoError(t, p.EndNodePreview(h, node, false))
	require.False(t, p.IsPreviewing(h))
	restored, _ := codec.Get(node)
	require.Equal(t, hashOf(t, original), hashOf(t, restored))

	// committing keeps the previewed state
	_, err = p.BeginNodePreview(h, node, saved.ID)
	require.NoError(t, err)
	require.NoError(t, p.EndNodePreview(h, node, true))
	kept, _ := codec.Get(node)
	require.Equal(t, hashOf(t, shown), hashOf(t, kept))

	ok, err = p.BeginNodePreview(h, node, "missing")
	require.NoError(t, err)
	require.False(t, ok, "nothing to preview")
	require.False(t, p.IsPreviewing(h))
	require.NoError(t, p.EndNodePreview(h, node, false))
}

func mustResolve(t *testing.T, g *graph.Graph, addr string) *graph.Node {
	t.Helper()
	a, err := graph.ParseAddress(addr)
	require.NoError(t, err)
	n, err := g.Resolve(a)
	require.NoError(t, err)
	return n
}

func mustTx(t *testing.T, p *Processor, c graph.Class, id hash.Digest) *Transaction {
	t.Helper()
	tx, err := p.ResolveGraph(c, id)
	require.NoError(t, err)
	return tx
}

func hashOf(t *testing.T, v any) hash.Digest {
	t.Helper()
	d, err := hash.Value(v)
	require.NoError(t, err)
	return d
}
