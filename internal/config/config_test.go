package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Config
		wantErr bool
	}{
		{
			name:  "empty uses defaults",
			input: "",
			want:  Default(),
		},
		{
			name: "overrides",
			input: `
archive = "/tmp/Presets.zip"
owner = "STUDIO"
log_level = "debug"
lock_timeout = "250ms"
`,
			want: Config{
				Archive:     "/tmp/Presets.zip",
				Entry:       "Presets.hfdb",
				Owner:       "STUDIO",
				LogLevel:    "debug",
				LockTimeout: Duration(250 * time.Millisecond),
			},
		},
		{name: "unknown key", input: `colour = "red"`, wantErr: true},
		{name: "bad duration", input: `lock_timeout = "soon"`, wantErr: true},
		{name: "negative duration", input: `lock_timeout = "-1s"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	want := Default()
	want.Archive = "/data/Presets.zip"
	data, err := Encode(want)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "hairpreset.toml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfig, "/env/hp.toml")
	if got := Path("/flag/hp.toml"); got != "/flag/hp.toml" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := Path(""); got != "/env/hp.toml" {
		t.Errorf("env should be used, got %q", got)
	}
	t.Setenv(EnvConfig, "")
	if got := Path(""); filepath.Base(got) != "hairpreset.toml" {
		t.Errorf("default path = %q", got)
	}
}
