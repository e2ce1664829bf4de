package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	atotto "github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/lifeline/internal/config"
	"github.com/hugo-lorenzo-mato/lifeline/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
	"github.com/hugo-lorenzo-mato/lifeline/internal/snapshot"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment lifeline will run in",
	Long: `Verify that the configuration is valid, the log directory accepts
artifacts, the artifact index is reachable, and snapshots can be written.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	fmt.Println("Checking configuration...")
	fmt.Println()

	cfg, issues := checkConfig()
	for _, issue := range issues {
		fmt.Printf("  ✗ %s\n", issue)
	}
	if len(issues) == 0 {
		fmt.Println("  ✓ configuration valid")
	}
	fmt.Println()

	if cfg == nil {
		return fmt.Errorf("doctor: cannot continue without a loadable configuration")
	}

	fmt.Println("Checking environment...")
	fmt.Println()

	envOK := true
	checks := []struct {
		name     string
		run      func(*config.Config) error
		required bool
	}{
		{"log directory accepts artifacts", checkLogDir, true},
		{"artifact index reachable", checkIndex, false},
		{"snapshot directory writable", checkSnapshotDir, false},
		{"clipboard available", checkClipboard, false},
	}
	for _, check := range checks {
		err := check.run(cfg)
		switch {
		case err == nil:
			fmt.Printf("  ✓ %s\n", check.name)
		case check.required:
			fmt.Printf("  ✗ %s: %v\n", check.name, err)
			envOK = false
		default:
			fmt.Printf("  ○ %s: %v (optional)\n", check.name, err)
		}
	}
	fmt.Println()

	fmt.Printf("Snapshot header: %s\n", strings.TrimSpace(snapshot.Header()))
	fmt.Println()

	if len(issues) > 0 || !envOK {
		fmt.Println("Problems found; fix the issues above before running workloads.")
		return fmt.Errorf("environment check failed")
	}

	fmt.Println("Environment ready")
	return nil
}

// checkConfig loads and validates the effective configuration.
func checkConfig() (*config.Config, []string) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, []string{fmt.Sprintf("cannot load config: %v", err)}
	}

	var issues []string
	if err := config.ValidateConfig(cfg); err != nil {
		if verrs, ok := err.(config.ValidationErrors); ok {
			for _, verr := range verrs {
				issues = append(issues, verr.Error())
			}
		} else {
			issues = append(issues, err.Error())
		}
	}
	return cfg, issues
}

// checkLogDir writes a probe artifact through the real writer and removes
// it again, proving the resolved directory accepts sealed artifacts.
func checkLogDir(cfg *config.Config) error {
	w := diagnostics.NewWriter(diagnostics.WriterConfig{
		Dir:     artifactDir(cfg),
		Logger:  logging.NewNop(),
		Console: io.Discard,
	})

	path, err := w.CreateLogFile("doctor-probe", "", func(out io.Writer) error {
		_, werr := io.WriteString(out, "lifeline doctor probe\n")
		return werr
	})
	if err != nil {
		return err
	}

	// Probe artifacts are sealed read-only like any other; unseal to clean up.
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("unsealing probe artifact: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing probe artifact: %w", err)
	}
	return nil
}

func checkIndex(cfg *config.Config) error {
	if cfg.Diagnostics.Index == "" {
		return fmt.Errorf("indexing disabled")
	}
	ix, err := diagnostics.OpenIndex(cfg.Diagnostics.Index)
	if err != nil {
		return err
	}
	defer ix.Close()

	if _, err := ix.Count(context.Background()); err != nil {
		return err
	}
	return nil
}

func checkSnapshotDir(cfg *config.Config) error {
	if cfg.Snapshot.Dir == "" {
		return fmt.Errorf("no fixed snapshot directory configured")
	}
	if err := os.MkdirAll(cfg.Snapshot.Dir, 0o750); err != nil {
		return err
	}
	probe, err := os.CreateTemp(cfg.Snapshot.Dir, "doctor-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

func checkClipboard(_ *config.Config) error {
	if atotto.Unsupported {
		return fmt.Errorf("no native clipboard on this platform")
	}
	return nil
}
