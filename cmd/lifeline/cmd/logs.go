package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/lifeline/internal/clip"
	"github.com/hugo-lorenzo-mato/lifeline/internal/config"
	"github.com/hugo-lorenzo-mato/lifeline/internal/diagnostics"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect diagnostic log artifacts",
}

var logsListCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List artifacts, newest first (pattern filters fuzzily)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogsList,
}

var logsShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print an artifact (defaults to the newest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogsShow,
}

var logsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the path of every new artifact as it appears",
	RunE:  runLogsWatch,
}

var logsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the newest artifact path",
	RunE:  runLogsPath,
}

var logsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete the oldest artifacts beyond the keep limit",
	RunE:  runLogsPrune,
}

var (
	logsListLimit int
	logsListBase  string
	logsListJSON  bool
	logsPathCopy  bool
	logsPruneKeep int
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsShowCmd)
	logsCmd.AddCommand(logsWatchCmd)
	logsCmd.AddCommand(logsPathCmd)
	logsCmd.AddCommand(logsPruneCmd)

	logsListCmd.Flags().IntVar(&logsListLimit, "limit", 20, "Limit number of artifacts listed (0 = all)")
	logsListCmd.Flags().StringVar(&logsListBase, "base", "", "Only list artifacts with this base name (exception, critical, unexpected, ...)")
	logsListCmd.Flags().BoolVar(&logsListJSON, "json", false, "Output as JSON")

	logsPathCmd.Flags().BoolVar(&logsPathCopy, "copy", false, "Also copy the path to the clipboard")

	logsPruneCmd.Flags().IntVar(&logsPruneKeep, "keep", -1, "How many artifacts to keep (default: diagnostics.max_files)")
}

// artifactRow is the CLI view of one artifact, index-backed or scanned.
type artifactRow struct {
	Path      string    `json:"path"`
	Base      string    `json:"base"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// artifactDir resolves the directory artifacts land in for this config,
// preferring the diagnostics override, then the configured LOGS path, then
// the writer's conventional fallbacks.
func artifactDir(cfg *config.Config) string {
	if cfg.Diagnostics.Dir != "" {
		return cfg.Diagnostics.Dir
	}
	return diagnostics.DefaultDir(cfg.Paths.Logs)
}

// openIndex opens the artifact index when one is configured. A nil index
// with a nil error means indexing is disabled.
func openIndex(cfg *config.Config) (*diagnostics.Index, error) {
	if cfg.Diagnostics.Index == "" {
		return nil, nil
	}
	return diagnostics.OpenIndex(cfg.Diagnostics.Index)
}

func runLogsList(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rows, err := listArtifacts(cfg, logsListBase, logsListLimit)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		rows = fuzzyFilterArtifacts(rows, args[0])
	}

	if logsListJSON {
		return outputJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Printf("No artifacts found in %s\n", artifactDir(cfg))
		return nil
	}
	return renderArtifactList(rows)
}

// listArtifacts returns artifacts newest first, from the index when one is
// configured and by scanning the artifact directory otherwise.
func listArtifacts(cfg *config.Config, base string, limit int) ([]artifactRow, error) {
	ix, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}
	if ix != nil {
		defer ix.Close()

		arts, err := ix.List(context.Background(), base, limit)
		if err != nil {
			return nil, err
		}
		rows := make([]artifactRow, 0, len(arts))
		for _, a := range arts {
			rows = append(rows, artifactRow{Path: a.Path, Base: a.Base, Size: a.Size, CreatedAt: a.CreatedAt})
		}
		return rows, nil
	}

	return scanArtifactDir(artifactDir(cfg), base, limit)
}

// scanArtifactDir is the index-less fallback: walk the directory for ".log"
// files, newest first.
func scanArtifactDir(dir, base string, limit int) ([]artifactRow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var rows []artifactRow
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".log") {
			continue
		}
		if base != "" && !strings.HasPrefix(name, base+"-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, name))
		if err != nil {
			abs = filepath.Join(dir, name)
		}
		rows = append(rows, artifactRow{
			Path:      abs,
			Base:      artifactBase(name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// artifactBase strips the "-<stamp>.log" tail from an artifact file name.
func artifactBase(name string) string {
	name = strings.TrimSuffix(name, ".log")
	if i := strings.LastIndex(name, "-"); i > 0 {
		if j := strings.LastIndex(name[:i], "-"); j > 0 {
			return name[:j]
		}
	}
	return name
}

func fuzzyFilterArtifacts(rows []artifactRow, pattern string) []artifactRow {
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = filepath.Base(r.Path)
	}
	matches := fuzzy.Find(pattern, names)
	filtered := make([]artifactRow, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, rows[m.Index])
	}
	return filtered
}

func renderArtifactList(rows []artifactRow) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tBASE\tSIZE\tPATH")
	fmt.Fprintln(w, "-------\t----\t----\t----")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			r.CreatedAt.Local().Format(time.RFC3339), r.Base, r.Size, r.Path)
	}
	return w.Flush()
}

// newestArtifact resolves the most recent artifact path for this config.
func newestArtifact(cfg *config.Config) (string, error) {
	rows, err := listArtifacts(cfg, "", 1)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no artifacts found in %s", artifactDir(cfg))
	}
	return rows[0].Path, nil
}

func runLogsShow(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 && args[0] != "latest" {
		path = args[0]
	} else {
		path, err = newestArtifact(cfg)
		if err != nil {
			return err
		}
	}

	data, err := diagnostics.ReadArtifact(path)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runLogsWatch(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := artifactDir(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !quiet {
		fmt.Printf("Watching %s for new artifacts (ctrl-c to stop)\n", dir)
	}

	err = diagnostics.WatchDir(ctx, dir, newLogger(cfg), func(path string) {
		fmt.Println(path)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runLogsPath(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, err := newestArtifact(cfg)
	if err != nil {
		return err
	}
	fmt.Println(path)

	if !logsPathCopy {
		return nil
	}
	res, err := clip.CopyText(path)
	if err != nil {
		return fmt.Errorf("copying artifact path: %w", err)
	}
	if !quiet {
		switch res.Method {
		case clip.MethodFile:
			fmt.Printf("clipboard unavailable; path written to %s\n", res.FilePath)
		default:
			fmt.Printf("copied to clipboard (%s)\n", res.Method)
		}
	}
	return nil
}

func runLogsPrune(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keep := logsPruneKeep
	if keep < 0 {
		keep = cfg.Diagnostics.MaxFiles
	}

	ix, err := openIndex(cfg)
	if err != nil {
		return err
	}
	if ix != nil {
		defer ix.Close()
	}

	removed, err := diagnostics.Prune(context.Background(), artifactDir(cfg), keep, ix, newLogger(cfg))
	if err != nil {
		return err
	}

	if quiet {
		fmt.Println(removed)
		return nil
	}
	fmt.Printf("Removed %d artifacts, keeping at most %d\n", removed, keep)
	return nil
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
