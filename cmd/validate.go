package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/linkrank/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate <corpus>",
	Short: "Check a corpus without ranking it",
	Long: `Builds the link graph of a corpus and reports its pages, links and dangling
pages (pages with no outbound links). Fails when the corpus cannot be read or
is not a valid link graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("edges", false, `read the corpus as an edge list ("-" for stdin)`)
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if initErr != nil {
		return initErr
	}
	edges, _ := cmd.Flags().GetBool("edges")

	src := newCorpusSource(args[0], edges, cmd.InOrStdin())
	g, err := src.load()
	if err != nil {
		return err
	}
	ui.NewWriter(cmd.OutOrStdout()).ValidateResult(src.name(), g.Len(), g.LinkCount(), g.DanglingPages())
	return nil
}
