package cli

import (
	"fmt"
	"path/filepath"

	"github.com/lazypower/recall/internal/ingest"
	"github.com/lazypower/recall/internal/model"
	"github.com/spf13/cobra"
)

var importCondense bool

var importCmd = &cobra.Command{
	Use:   "import [file.jsonl...]",
	Short: "Bulk-load pages from JSONL files",
	Long: `Load pages from JSONL files. Each line is a page object ({"header","content","meta"})
or a chat transcript entry ({"type","message":{"role","content"}}). Transcript messages
become one page each, or a single condensed page per file with --condense.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importCondense, "condense", false, "Fold each transcript into one page")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var pages []model.Page
	skipped := 0
	for _, path := range args {
		res, err := ingest.ReadFile(path)
		if err != nil {
			return err
		}
		skipped += res.Skipped
		if importCondense && len(res.Messages) > 0 {
			if p, ok := ingest.Condense(res.Messages, filepath.Base(path)); ok {
				pages = append(pages, p)
			}
			// page lines in a transcript file are kept as they are
			for _, p := range res.Pages {
				if _, isMsg := p.Meta[ingest.MetaRole]; !isMsg {
					pages = append(pages, p)
				}
			}
			continue
		}
		pages = append(pages, res.Pages...)
	}

	c, _, err := openCorpus(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	first, err := c.AddPages(pages)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(pages) == 0 {
		fmt.Fprintf(out, "imported 0 pages (%d lines skipped)\n", skipped)
		return nil
	}
	fmt.Fprintf(out, "imported %d pages at %d..%d (%d lines skipped)\n", len(pages), first, first+len(pages)-1, skipped)
	return nil
}
