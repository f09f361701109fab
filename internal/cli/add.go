package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lazypower/recall/internal/model"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add pages or memory abstracts",
}

var (
	addHeader      string
	addContent     string
	addContentFile string
	addMeta        map[string]string
)

var addPageCmd = &cobra.Command{
	Use:   "page",
	Short: "Add a page to the corpus",
	Long:  "Add a page. Content comes from --content, or from --file (use - for stdin).",
	Args:  cobra.NoArgs,
	RunE:  runAddPage,
}

var addMemoryCmd = &cobra.Command{
	Use:   "memory [abstract]",
	Short: "Store a memory abstract",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAddMemory,
}

func init() {
	addPageCmd.Flags().StringVar(&addHeader, "header", "", "Page header")
	addPageCmd.Flags().StringVar(&addContent, "content", "", "Page content")
	addPageCmd.Flags().StringVarP(&addContentFile, "file", "f", "", "Read content from file")
	addPageCmd.Flags().StringToStringVar(&addMeta, "meta", nil, "Metadata as key=value pairs")

	addCmd.AddCommand(addPageCmd)
	addCmd.AddCommand(addMemoryCmd)
}

func runAddPage(cmd *cobra.Command, args []string) error {
	content := addContent
	if addContentFile != "" {
		data, err := readContent(cmd, addContentFile)
		if err != nil {
			return err
		}
		content = data
	}
	if addHeader == "" && content == "" {
		return fmt.Errorf("a page needs --header or content")
	}

	meta := make(map[string]any, len(addMeta))
	for k, v := range addMeta {
		meta[k] = v
	}

	c, _, err := openCorpus(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	idx, p, err := c.AddPage(model.Page{Header: addHeader, Content: content, Meta: meta})
	if err != nil {
		return fmt.Errorf("add page: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added page %d (%s)\n", idx, p.ID())
	return nil
}

func readContent(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}

func runAddMemory(cmd *cobra.Command, args []string) error {
	abstract := strings.TrimSpace(strings.Join(args, " "))
	if abstract == "" {
		return fmt.Errorf("abstract is empty")
	}

	c, _, err := openCorpus(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.AddMemory(abstract); err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "stored")
	return nil
}
