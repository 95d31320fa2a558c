package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"crev/internal/symbols"
)

var symbolsScipIndex string

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "Dump the symbol table extracted from a source file",
	Long: `Extract and print the definition table of one source file as JSON.

Useful for inspecting what the symbol granularity will compare: qualified
names, kinds, and line/byte spans. With --scip-index the table comes from
the prebuilt index instead of tree-sitter parsing.`,
	Args: cobra.ExactArgs(1),
	RunE: runSymbols,
}

func init() {
	symbolsCmd.Flags().StringVar(&symbolsScipIndex, "scip-index", "", "Read symbols from a SCIP index instead of parsing")
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbols(cmd *cobra.Command, args []string) error {
	path := args[0]

	var table *symbols.Table
	if symbolsScipIndex != "" {
		scip, err := symbols.LoadSCIPIndex(symbolsScipIndex)
		if err != nil {
			return err
		}
		table, err = scip.Table(path)
		if err != nil {
			return err
		}
	} else {
		if !symbols.Available() {
			return fmt.Errorf("tree-sitter support not compiled in; rebuild with cgo or use --scip-index")
		}
		extractor := symbols.NewExtractor()
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		table, err = extractor.ExtractFile(cmd.Context(), abs, path)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(table)
}
