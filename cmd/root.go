package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/archive"
	"github.com/Morzio/Hair-Factory/internal/config"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/logging"
	"github.com/Morzio/Hair-Factory/internal/preset"
	"github.com/Morzio/Hair-Factory/internal/session"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// EnvArchive overrides every other way of locating the archive.
const EnvArchive = "HAIRFACTORY_PRESETS"

const archiveName = "Presets.zip"

var (
	archivePath string
	configPath  string
	logLevel    string
	jsonOutput  bool

	cfg    = config.Default()
	logger = zap.NewNop()
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "hairpreset",
	Short:         "Content-addressed preset store for Hair Factory",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.Path(configPath))
		if err != nil {
			return err
		}
		cfg = loaded
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logger, err = logging.New(level)
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&archivePath, "archive", "", "Path to the Presets.zip archive")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to hairpreset.toml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
}

// DiscoverArchive finds the archive path using priority:
// env > flag > config > walk-up > XDG fallback.
func DiscoverArchive() (string, error) {
	if envPath := os.Getenv(EnvArchive); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	if archivePath != "" {
		if _, err := os.Stat(archivePath); err == nil {
			return archivePath, nil
		}
		return "", fmt.Errorf("archive not found at --archive path: %s", archivePath)
	}

	if cfg.Archive != "" {
		if _, err := os.Stat(cfg.Archive); err == nil {
			return cfg.Archive, nil
		}
		return "", fmt.Errorf("archive not found at configured path: %s", cfg.Archive)
	}

	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, archiveName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if xdgPath := defaultArchivePath(); xdgPath != "" {
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", fmt.Errorf("no %s found (set %s, use --archive, or run hairpreset init)", archiveName, EnvArchive)
}

func defaultArchivePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "hair-factory", archiveName)
}

func openArchive(path string) *archive.Archive {
	return archive.New(path, cfg.Entry, time.Duration(cfg.LockTimeout), logger)
}

// withProcessor discovers the archive and runs fn against its store. With
// write set the changes are packed back; otherwise they are discarded.
func withProcessor(ctx context.Context, write bool, fn func(p *preset.Processor) error) error {
	path, err := DiscoverArchive()
	if err != nil {
		return err
	}
	run := func(dbPath string) error {
		st, err := store.Open(dbPath, logger)
		if err != nil {
			return err
		}
		previews := session.New()
		ferr := fn(preset.New(st, cfg.Owner, previews, logger))
		endSession(previews)
		// closed before the archive is repacked
		if cerr := st.Close(); ferr == nil {
			ferr = cerr
		}
		return ferr
	}
	a := openArchive(path)
	if write {
		return a.Mutate(ctx, run)
	}
	return a.Read(ctx, run)
}

// endSession drops the previews a command left open. Each command is one
// editing session.
func endSession(previews *session.Cache) {
	for _, pv := range previews.Clear() {
		logger.Debug("dropping open preview", zap.String("handle", string(pv.Handle)), zap.String("record", pv.RecordID))
	}
}

// ResolvePreset finds a preset of type t by full id, id prefix, or exact
// display name.
func ResolvePreset(p *preset.Processor, t preset.Type, reference string) (*store.Entry, error) {
	tbl, err := t.Table()
	if err != nil {
		return nil, err
	}
	st := p.Store()

	// 1. Exact id match
	if name, err := st.NameOf(tbl, hash.Digest(reference)); err == nil {
		return &store.Entry{ID: hash.Digest(reference), Name: name}, nil
	}

	// 2. Id prefix match (>= 6 hex chars)
	if len(reference) >= 6 && isHex(reference) {
		matches, err := st.ByIDPrefix(tbl, strings.ToLower(reference), 10)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 1:
			return &matches[0], nil
		case 0:
			// fall through to name lookup
		default:
			lines := make([]string, len(matches))
			for i, m := range matches {
				lines[i] = fmt.Sprintf("  %s %s", m.ID.Short(), m.Name)
			}
			return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a full preset id instead.",
				reference, len(matches), strings.Join(lines, "\n"))
		}
	}

	// 3. Display name
	id, err := st.IDByName(tbl, reference)
	if err == nil {
		return &store.Entry{ID: id, Name: reference}, nil
	}
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}
	return nil, fmt.Errorf("%s preset not found: %s", t, reference)
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func jsonIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult reports a save or import.
func printResult(verb string, res *preset.SaveResult) error {
	if jsonOutput {
		return printJSON(res)
	}
	if res.Created {
		fmt.Printf("%s %s %s %q (%s)\n", green("✓"), verb, res.Type, res.Name, res.ID.Short())
	} else {
		fmt.Printf("%s %s %q (%s) already stored\n", yellow("="), res.Type, res.Name, res.ID.Short())
	}
	return nil
}

// writeOutput writes data to path, or stdout when path is empty or "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
