package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/lifeline/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize lifeline in the current directory",
	Long: `Initialize lifeline in the current directory. Writes a commented starter
configuration and creates the log and state directories.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(_ *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	configPath := filepath.Join(cwd, ".lifeline.yaml")

	if initForce {
		if err := os.Remove(configPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing existing config: %w", err)
		}
	}

	if err := config.WriteDefault(configPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("configuration already exists, use --force to overwrite")
		}
		return err
	}

	// The conventional directories the artifact fallback chain checks for.
	dirs := []string{
		"logs",
		filepath.Join(".lifeline"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(cwd, dir), 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if quiet {
		fmt.Println(configPath)
		return nil
	}

	fmt.Println("Initialized lifeline project")
	fmt.Printf("  config:  %s\n", configPath)
	fmt.Printf("  logs:    %s\n", filepath.Join(cwd, "logs"))
	fmt.Printf("  state:   %s\n", filepath.Join(cwd, ".lifeline"))
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  lifeline doctor   # verify the environment")
	fmt.Println("  lifeline serve    # start the supervised status host")

	return nil
}
