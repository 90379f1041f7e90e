// Command simulate drives a full revision workflow against a local stub of
// the revision service and prints every message the workflow produces.
package main

import (
	"fmt"
	"os"
	"strings"

	"ai-editorial-be/pkg/editor"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	catalogPath string
	docPath     string
	selection   string
	reject      bool
	failStage   string
)

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the editorial workflow end to end against a stub revision service",
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Print the editor catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		fmt.Println(catalog.Menu())
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Revise a document through the selected editors",
	Long: `Run revises a document through the selected editors. Every stage is
answered by a local stub that tidies whitespace, capitalisation and end
punctuation, so the workflow can be exercised without the real service.

Example:
  simulate run --doc article.md --select "1,3"
  simulate run --doc article.md --select all --reject
  simulate run --doc article.md --select "line and copy" --fail-stage copy`,
	RunE: runSimulation,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "editor catalog YAML (default: built-in catalog)")

	runCmd.Flags().StringVarP(&docPath, "doc", "d", "", "path to the .txt or .md document (required)")
	runCmd.Flags().StringVarP(&selection, "select", "s", "all", `editor selection, e.g. "1,3", "2-4", "line and copy"`)
	runCmd.Flags().BoolVar(&reject, "reject", false, "reject every edit instead of approving it")
	runCmd.Flags().StringVar(&failStage, "fail-stage", "", "stage id the stub reports as failed")
	_ = runCmd.MarkFlagRequired("doc")

	rootCmd.AddCommand(menuCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func loadCatalog() (*editor.Catalog, error) {
	if catalogPath == "" {
		return editor.DefaultCatalog(), nil
	}
	return editor.LoadCatalog(catalogPath)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	sel, err := catalog.ParseSelection(selection)
	if err != nil {
		return err
	}
	if sel.Intent != editor.IntentSelect {
		return fmt.Errorf("selection %q does not name any editors", selection)
	}

	stub := newStubService(catalog, strings.TrimSpace(failStage))
	defer stub.Close()

	color.Cyan("Stub revision service listening on %s", stub.URL())

	d := newDriver(catalog, stub.URL(), !reject, os.Stdout)
	return d.Run(cmd.Context(), sel.StageIDs, string(data))
}
