package cli

import (
	"fmt"
	"io"

	"github.com/lazypower/recall/internal/ttl"
	"github.com/spf13/cobra"
)

// --- memory command ---

var memoryJSON, memoryAll bool

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "List valid memory abstracts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := openCorpus(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if memoryAll {
			return printMemoryEntries(cmd.OutOrStdout(), c.MemoryEntries())
		}

		state, err := c.Memory()
		if err != nil {
			return fmt.Errorf("load memory: %w", err)
		}
		w := cmd.OutOrStdout()
		if memoryJSON {
			if state.Abstracts == nil {
				state.Abstracts = []string{}
			}
			return writeJSON(w, state)
		}
		if len(state.Abstracts) == 0 {
			fmt.Fprintln(w, "No memory stored.")
			return nil
		}
		for _, a := range state.Abstracts {
			fmt.Fprintf(w, "- %s\n", a)
		}
		return nil
	},
}

// printMemoryEntries lists stored abstracts with their timestamps, expired
// ones included.
func printMemoryEntries(w io.Writer, entries []ttl.MemoryEntry) error {
	if memoryJSON {
		if entries == nil {
			entries = []ttl.MemoryEntry{}
		}
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No memory stored.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "- [%s] %s\n", e.Timestamp, e.Content)
	}
	return nil
}

// --- stats command ---

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store occupancy and expiry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := openCorpus(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		st := c.Stats()
		w := cmd.OutOrStdout()
		if statsJSON {
			return writeJSON(w, st)
		}
		fmt.Fprintf(w, "backend: %s (%s)\n", st.Backend, st.Location)
		printStoreStats(w, "memory", st.Memory)
		printStoreStats(w, "pages", st.Pages)
		for _, snap := range st.Snapshots {
			fmt.Fprintf(w, "snapshot %s: %d bytes\n", snap.Key, snap.Size)
		}
		if st.Embeddings > 0 {
			fmt.Fprintf(w, "cached embeddings: %d\n", st.Embeddings)
		}
		return nil
	},
}

func printStoreStats(w io.Writer, name string, s ttl.Stats) {
	ttlDesc := "disabled"
	if s.TTLEnabled {
		ttlDesc = fmt.Sprintf("%ds", s.TTLSeconds)
	}
	fmt.Fprintf(w, "%s: total=%d valid=%d expired=%d ttl=%s\n", name, s.Total, s.Valid, s.Expired, ttlDesc)
}

// --- cleanup command ---

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge expired memory and pages",
	Long:  "Remove expired entries from both stores. Page indices shift after pages are purged.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := openCorpus(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Cleanup()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "removed %d memory, %d pages\n", res.Memory, res.Pages)
		if res.Embeddings > 0 {
			fmt.Fprintf(out, "dropped %d cached embeddings\n", res.Embeddings)
		}
		return nil
	},
}

func init() {
	memoryCmd.Flags().BoolVar(&memoryJSON, "json", false, "Print abstracts as JSON")
	memoryCmd.Flags().BoolVar(&memoryAll, "all", false, "List every stored entry with its timestamp")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print stats as JSON")
}
