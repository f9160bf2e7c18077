package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/archive"
	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/preset"
	"github.com/Morzio/Hair-Factory/internal/session"
	"github.com/Morzio/Hair-Factory/internal/store"
)

const skinYAML = `
name: HF_Skin
nodes:
  - name: Principled
    kind: BSDF_PRINCIPLED
    inputs:
      - {name: Roughness, value: ROUGHNESS}
  - {name: Output, kind: OUTPUT_MATERIAL}
  - name: Ramp
    kind: VALTORGB
    state:
      color: [[0, 0, 0, 1], [1, 1, 1, 1]]
      position: [0.0, 1.0]
links:
  - {from: 2, from_socket: Color, to: 0, to_socket: Base Color}
  - {from: 0, from_socket: BSDF, to: 1, to_socket: Surface}
`

func skin(roughness string) string {
	return strings.Replace(skinYAML, "ROUGHNESS", roughness, 1)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes the CLI with fresh flag state and no user config.
func run(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv(EnvArchive, "")
	t.Setenv("HAIRFACTORY_CONFIG", filepath.Join(t.TempDir(), "none.toml"))
	archivePath, configPath, logLevel, jsonOutput = "", "", "", false
	saveName, saveAddress = "", ""
	loadValuesOnly, loadOutput, loadAddress = false, "", ""
	exportOutput, listSearch, listKind = "", "", ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func setupTestProcessor(t *testing.T) *preset.Processor {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return preset.New(st, "USER", session.New(), zap.NewNop())
}

func TestIsHex(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"abc123", true},
		{"ABCDEF", true},
		{"abc-12", false},
		{"Red_Skin", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := isHex(tt.in); got != tt.want {
			t.Errorf("isHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolvePreset(t *testing.T) {
	p := setupTestProcessor(t)
	g, err := graph.Parse([]byte(skin("0.4")))
	require.NoError(t, err)
	saved, err := p.SaveGraph(graph.Material, g, "Red_Skin")
	require.NoError(t, err)

	for _, ref := range []string{string(saved.ID), string(saved.ID)[:8], strings.ToUpper(string(saved.ID)[:8]), "Red_Skin"} {
		got, err := ResolvePreset(p, preset.TypeMaterial, ref)
		require.NoError(t, err, ref)
		require.Equal(t, saved.ID, got.ID, ref)
		require.Equal(t, "Red_Skin", got.Name, ref)
	}

	_, err = ResolvePreset(p, preset.TypeMaterial, "Blue_Skin")
	require.ErrorContains(t, err, "not found")
	_, err = ResolvePreset(p, preset.TypeGeometry, "Red_Skin")
	require.Error(t, err, "names are per type")
	_, err = ResolvePreset(p, preset.TypeMaterial, string(saved.ID)[:5])
	require.Error(t, err, "short prefixes are names")
}

func TestDiscoverArchive(t *testing.T) {
	dir := t.TempDir()
	flagged := writeFile(t, dir, "flag.zip", "")
	env := writeFile(t, dir, "env.zip", "")
	t.Cleanup(func() { archivePath = "" })

	t.Setenv(EnvArchive, env)
	archivePath = flagged
	got, err := DiscoverArchive()
	require.NoError(t, err)
	require.Equal(t, env, got)

	t.Setenv(EnvArchive, "")
	got, err = DiscoverArchive()
	require.NoError(t, err)
	require.Equal(t, flagged, got)

	archivePath = filepath.Join(dir, "missing.zip")
	_, err = DiscoverArchive()
	require.ErrorContains(t, err, "--archive")
}

func TestEndSession(t *testing.T) {
	previews := session.New()
	h := session.NewHandle()
	previews.Begin(h, "original", "abc123")
	endSession(previews)
	require.False(t, previews.IsPreviewing(h))
	require.Empty(t, previews.Pending())
}

func TestCLI_SaveExportImport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", archiveName)
	dst := filepath.Join(dir, "b", archiveName)
	graphFile := writeFile(t, dir, "skin.yaml", skin("0.4"))
	docFile := filepath.Join(dir, "skin.json")

	require.NoError(t, run(t, "--archive", src, "init"))
	require.Error(t, run(t, "--archive", src, "init"), "archive exists")
	require.NoError(t, run(t, "--archive", src, "save", "material", graphFile, "--name", "Red_Skin"))
	require.NoError(t, run(t, "--archive", src, "save", "material", graphFile, "--name", "Red_Skin"), "same content again")
	require.Error(t, run(t, "--archive", src, "save", "material", writeFile(t, dir, "bold.yaml", skin("0.9")), "--name", "Red_Skin"))
	require.Error(t, run(t, "--archive", src, "save", "material", graphFile, "--name", "two words"))
	require.NoError(t, run(t, "--archive", src, "export", "material", "Red_Skin", "-o", docFile))

	require.NoError(t, run(t, "--archive", dst, "init"))
	require.NoError(t, run(t, "--archive", dst, "import", docFile))

	var names []string
	err := archive.New(dst, "", 0, nil).Read(context.Background(), func(path string) error {
		st, err := store.Open(path, zap.NewNop())
		if err != nil {
			return err
		}
		defer st.Close()
		names, err = preset.New(st, "USER", nil, zap.NewNop()).Names(preset.TypeMaterial)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Red_Skin"}, names)
}

func TestCLI_LoadAndRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, archiveName)
	out := filepath.Join(dir, "out.yaml")
	require.NoError(t, run(t, "--archive", path, "init"))
	require.NoError(t, run(t, "--archive", path, "save", "material", writeFile(t, dir, "skin.yaml", skin("0.4")), "--name", "Red_Skin"))

	target := writeFile(t, dir, "target.yaml", skin("0.9"))
	require.NoError(t, run(t, "--archive", path, "load", "material", "Red_Skin", target, "--values-only", "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	g, err := graph.Parse(data)
	require.NoError(t, err)
	require.EqualValues(t, 0.4, g.Nodes[0].Inputs[0].Value)

	require.Error(t, run(t, "--archive", path, "load", "material", "Red_Skin"), "graph presets need a file")

	require.NoError(t, run(t, "--archive", path, "rename", "material", "Red_Skin", "Red_Skin_Soft"))
	require.Error(t, run(t, "--archive", path, "load", "material", "Red_Skin", target))
	require.NoError(t, run(t, "--archive", path, "load", "material", "Red_Skin_Soft", target, "-o", out))
	require.NoError(t, run(t, "--archive", path, "list", "material", "--search", "Soft"))
	require.NoError(t, run(t, "--archive", path, "links", "material", "Red_Skin_Soft"))
}

func TestCLI_Inspect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run(t, "inspect", writeFile(t, dir, "skin.yaml", skin("0.4"))))
	require.NoError(t, run(t, "--json", "inspect", "--class", "material", writeFile(t, dir, "skin2.yaml", skin("0.5"))))
	require.Error(t, run(t, "inspect", writeFile(t, dir, "bad.yaml", "nodes: 3")))
}
