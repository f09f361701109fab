package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/model"
	"github.com/spf13/cobra"
)

// --- search command ---

var (
	searchRetriever string
	searchVector    bool
	searchLimit     int
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored pages",
	Long:  "Rank stored pages against a query with BM25. Use --vector for embedding similarity, or --retriever to pick a registered retriever or tool by name.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchRetriever, "retriever", "r", "", "Retriever or tool name (default keyword)")
	searchCmd.Flags().BoolVar(&searchVector, "vector", false, "Use the vector retriever")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print hits as JSON")

	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "Print hits as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	retriever := searchRetriever
	if searchVector {
		retriever = model.SourceVector
	}
	c, _, err := openCorpus(cmd, func(cfg *config.Config) {
		if retriever == model.SourceVector {
			cfg.Retrieval.UseVector = true
		}
	})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	hits, err := c.Search(ctx, retriever, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printHits(cmd.OutOrStdout(), hits, searchJSON)
}

// --- lookup command ---

var lookupJSON bool

var lookupCmd = &cobra.Command{
	Use:   "lookup [index...]",
	Short: "Fetch pages by index",
	Long:  "Resolve page indices, as reported by search, to their pages. Out-of-range indices are skipped.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	indices := make([]int, 0, len(args))
	for _, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid index %q", a)
		}
		indices = append(indices, i)
	}

	c, _, err := openCorpus(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	hits, err := c.Lookup(cmd.Context(), indices)
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	return printHits(cmd.OutOrStdout(), hits, lookupJSON)
}

func printHits(w io.Writer, hits []model.Hit, asJSON bool) error {
	if asJSON {
		if hits == nil {
			hits = []model.Hit{}
		}
		return writeJSON(w, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	for i, h := range hits {
		where := h.Source
		if h.PageIndex != nil {
			where = fmt.Sprintf("page %d, %s", *h.PageIndex, h.Source)
		}
		if score, ok := h.Meta["score"].(float64); ok {
			fmt.Fprintf(w, "%d. [%.3f] %s\n", i+1, score, where)
		} else {
			fmt.Fprintf(w, "%d. %s\n", i+1, where)
		}
		fmt.Fprintf(w, "   %s\n\n", strings.ReplaceAll(h.Snippet, "\n", " "))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
