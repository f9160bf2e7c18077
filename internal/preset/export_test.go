package preset

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/store"
)

func encode(t *testing.T, doc *Document) []byte {
	t.Helper()
	raw, err := doc.Encode()
	require.NoError(t, err)
	return raw
}

func TestExportImport_Graph(t *testing.T) {
	src := setupTestProcessor(t)
	saved, err := src.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)

	doc, err := src.Export(TypeMaterial, saved.ID)
	require.NoError(t, err)
	require.Equal(t, Meta{Name: "Red_Skin", Type: TypeMaterial, Version: DocumentVersion}, doc.Meta)
	raw := encode(t, doc)

	dst := setupTestProcessor(t)
	res, err := dst.Import(raw)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, saved.ID, res.ID)
	require.Equal(t, "Red_Skin", res.Name)

	// the imported preset loads like the original
	live := material(t, 0.9, 0.5)
	report, err := dst.LoadGraph(graph.Material, res.ID, live, LoadFull)
	require.NoError(t, err)
	require.Equal(t, 2, report.Nodes)
	require.EqualValues(t, 0.4, live.Nodes[0].Inputs[1].Value)

	ramps, err := dst.NodeNames("VALTORGB", "")
	require.NoError(t, err)
	require.Equal(t, "CR_0", ramps[0].Name, "node names travel with the document")

	again, err := dst.Import(raw)
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, 1, count(t, dst, store.GraphTables(graph.Material).Transactions))

	// exporting the import yields the same document
	redoc, err := dst.Export(TypeMaterial, res.ID)
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(encode(t, redoc)))
}

func TestImport_NameSuffix(t *testing.T) {
	src := setupTestProcessor(t)
	saved, err := src.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	doc, err := src.Export(TypeMaterial, saved.ID)
	require.NoError(t, err)

	dst := setupTestProcessor(t)
	_, err = dst.SaveGraph(graph.Material, material(t, 0.7, 1), "Red_Skin")
	require.NoError(t, err)

	res, err := dst.Import(encode(t, doc))
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "Red_Skin.001", res.Name)
}

func TestImport_Tampered(t *testing.T) {
	src := setupTestProcessor(t)
	saved, err := src.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	raw := encode(t, mustExport(t, src, TypeMaterial, saved.ID))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	data := doc["DATA"].(map[string]any)
	values := data["values"].([]any)
	entry := values[0].(map[string]any)
	entry["name"] = "Tampered"
	tampered, err := json.Marshal(doc)
	require.NoError(t, err)

	dst := setupTestProcessor(t)
	_, err = dst.Import(tampered)
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie), "got %v", err)
	require.Equal(t, "values", ie.What)
	require.Zero(t, count(t, dst, store.GraphTables(graph.Material).Data), "nothing written")
}

func TestImport_ForgedSpecial(t *testing.T) {
	src := setupTestProcessor(t)
	saved, err := src.SaveGraph(graph.Material, material(t, 0.4, 1), "Red_Skin")
	require.NoError(t, err)
	raw := encode(t, mustExport(t, src, TypeMaterial, saved.ID))

	tests := []struct {
		name    string
		special map[string]any
	}{
		{"moved address", map[string]any{"VALTORGB": []any{"42.7"}, "RGB": []any{"3.2"}}},
		{"extra kind", map[string]any{"VALTORGB": []any{"2"}, "RGB": []any{"3.2"}, "CURVE_RGB": []any{"1"}}},
		{"dropped kind", map[string]any{"VALTORGB": []any{"2"}}},
		{"empty", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal(raw, &doc))
			group := doc["DATA"].(map[string]any)["group"].(map[string]any)
			group["special"] = tt.special
			forged, err := json.Marshal(doc)
			require.NoError(t, err)

			dst := setupTestProcessor(t)
			_, err = dst.Import(forged)
			var ie *IntegrityError
			require.True(t, errors.As(err, &ie), "got %v", err)
			require.Equal(t, "special nodes", ie.What)
			require.Zero(t, count(t, dst, store.GraphTables(graph.Material).Data), "nothing written")
		})
	}
}

func TestImport_TamperedNode(t *testing.T) {
	src := setupTestProcessor(t)
	saved, err := src.SaveNode(material(t, 0.4, 0.6), graph.Address{2}, "Ramp")
	require.NoError(t, err)
	raw := encode(t, mustExport(t, src, TypeNode, saved.ID))
	tampered := strings.Replace(string(raw), `"LINEAR"`, `"EASE"`, 1)
	require.NotEqual(t, string(raw), tampered)

	_, err = setupTestProcessor(t).Import([]byte(tampered))
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie), "got %v", err)
}

func TestImport_SchemaRejects(t *testing.T) {
	src := setupTestProcessor(t)
	saved, err := src.SaveSettings(TypeCloth, map[string]any{"mass": 0.3}, "Silk")
	require.NoError(t, err)
	raw := string(encode(t, mustExport(t, src, TypeCloth, saved.ID)))

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"version", strings.Replace(raw, `"VERSION": 1`, `"VERSION": 2`, 1)},
		{"type", strings.Replace(raw, `"TYPE": "CLOTH"`, `"TYPE": "FLUID"`, 1)},
		{"extra key", `{"META": {"NAME": "x", "TYPE": "CLOTH", "VERSION": 1}, "DATA": {}, "MORE": 1}`},
		{"missing data", `{"META": {"NAME": "x", "TYPE": "CLOTH", "VERSION": 1}}`},
		{"bad digest", strings.Replace(raw, string(saved.ID), "abc", 1)},
		{"empty settings", `{"META": {"NAME": "x", "TYPE": "CLOTH", "VERSION": 1}, "DATA": {"id": "` + string(saved.ID) + `", "name": "x", "type": "CLOTH", "settings": {}}}`},
		{"hair sizes", `{"META": {"NAME": "h", "TYPE": "HAIR", "VERSION": 1}, "DATA": {"id": "` + string(saved.ID) + `", "name": "h", "points": [[0, 0, 0]], "sizes": [70000]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := setupTestProcessor(t).Import([]byte(tt.doc))
			var ve *graph.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestExportImport_Stack(t *testing.T) {
	src := setupTestProcessor(t)
	st := &graph.Stack{Layers: []graph.Layer{
		{Label: "base", Graph: geometry(t, 0.5, 1)},
		{Label: "detail", Graph: geometry(t, 0.8, 0.3)},
	}}
	saved, _, err := src.SaveStack(st, "Curly")
	require.NoError(t, err)
	doc, err := src.Export(TypeStack, saved.ID)
	require.NoError(t, err)
	data := doc.Data.(*StackData)
	require.Equal(t, []string{"base", "detail"}, data.Labels)
	require.Len(t, data.Members, 2)

	dst := setupTestProcessor(t)
	res, err := dst.Import(encode(t, doc))
	require.NoError(t, err)
	require.Equal(t, saved.ID, res.ID)
	require.Equal(t, 2, count(t, dst, store.GraphTables(graph.GeometryNode).Transactions))

	sp, name, err := dst.Stack(res.ID)
	require.NoError(t, err)
	require.Equal(t, "Curly", name)
	require.Len(t, sp.Layers, 2)
	require.Equal(t, "detail", sp.Layers[1].Label)
}

func TestExportImport_NodeSettingsHair(t *testing.T) {
	src := setupTestProcessor(t)
	node, err := src.SaveNode(geometry(t, 1, 0.4), graph.Address{1}, "Soft_Curve")
	require.NoError(t, err)
	cloth, err := src.SaveSettings(TypeCloth, map[string]any{"mass": 0.3, "quality": 5}, "Silk")
	require.NoError(t, err)
	points := [][3]float32{{0, 0, 0.1}, {0.3, 0.7, 1.1}}
	hair, err := src.SaveHair(points, []int{2}, "Strand")
	require.NoError(t, err)

	dst := setupTestProcessor(t)
	for _, s := range []*SaveResult{node, cloth, hair} {
		raw := encode(t, mustExport(t, src, s.Type, s.ID))
		res, err := dst.Import(raw)
		require.NoError(t, err, s.Type)
		require.Equal(t, s.ID, res.ID, s.Type)
		require.Equal(t, s.Name, res.Name, s.Type)
		require.True(t, res.Created, s.Type)
	}

	curves, err := dst.NodeNames("CURVE_FLOAT", "")
	require.NoError(t, err)
	require.Len(t, curves, 1)

	settings, _, err := dst.LoadSettings(TypeCloth, cloth.ID)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"mass": 0.3, "quality": int64(5)}, settings)

	h, err := dst.LoadHair(hair.ID)
	require.NoError(t, err)
	require.Equal(t, points, h.Points)
}

func TestDecode(t *testing.T) {
	p := setupTestProcessor(t)
	saved, err := p.SaveHair([][3]float32{{1, 2, 3}}, []int{1}, "Dot")
	require.NoError(t, err)
	doc, err := Decode(encode(t, mustExport(t, p, TypeHair, saved.ID)))
	require.NoError(t, err)
	require.Equal(t, "Dot", doc.Meta.Name)
	require.Equal(t, TypeHair, doc.Meta.Type)
}

func mustExport(t *testing.T, p *Processor, typ Type, id hash.Digest) *Document {
	t.Helper()
	doc, err := p.Export(typ, id)
	require.NoError(t, err)
	return doc
}
