package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	httpserver "github.com/fyrsmithlabs/bookmarkd/internal/http"
	"github.com/spf13/cobra"
)

var treeDepth int

// treeCmd prints the bookmark tree
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the bookmark tree",
	Long: `Print the materialized bookmark tree, one node per line.

Examples:
  # Print the top two levels
  bookmarkctl tree --depth 2

  # Print everything
  bookmarkctl tree --depth 0`,
	Args: cobra.NoArgs,
	RunE: runTree,
}

// planCmd previews grouping and rewrite rules
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview grouping and rewrite rules",
	Long: `Show the folder each bookmark would be grouped into and how its URL
would be rewritten. Nothing is changed.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", 3, "levels to print, 0 for unlimited")
}

// nodeView decodes the node JSON served by the API.
type nodeView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Folder    bool     `json:"folder"`
	Immutable bool     `json:"immutable"`
	URL       string   `json:"url"`
	Children  []string `json:"children"`
}

type treeView struct {
	Roots []nodeView `json:"roots"`
	Count int        `json:"count"`
}

// runTree handles the tree command
func runTree(cmd *cobra.Command, args []string) error {
	var tree treeView
	if _, err := call(http.MethodGet, "/api/v1/bookmarks", nil, nil, &tree); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, root := range tree.Roots {
		if err := printNode(out, root, 0); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%d nodes\n", tree.Count)
	return nil
}

func printNode(out io.Writer, n nodeView, level int) error {
	indent := strings.Repeat("  ", level)
	lock := ""
	if n.Immutable {
		lock = " [immutable]"
	}
	if !n.Folder {
		fmt.Fprintf(out, "%s- %s <%s>%s\n", indent, n.Title, n.URL, lock)
		return nil
	}
	fmt.Fprintf(out, "%s+ %s (%s)%s\n", indent, n.Title, n.ID, lock)

	if treeDepth > 0 && level+1 >= treeDepth {
		if len(n.Children) > 0 {
			fmt.Fprintf(out, "%s  ... %d children\n", indent, len(n.Children))
		}
		return nil
	}
	for _, id := range n.Children {
		var child nodeView
		if _, err := call(http.MethodGet, "/api/v1/bookmarks/"+url.PathEscape(id), nil, nil, &child); err != nil {
			return fmt.Errorf("loading bookmark %s: %w", id, err)
		}
		if err := printNode(out, child, level+1); err != nil {
			return err
		}
	}
	return nil
}

// runPlan handles the plan command
func runPlan(cmd *cobra.Command, args []string) error {
	var plan httpserver.PlanResponse
	if _, err := call(http.MethodGet, "/api/v1/bookmarks/plan", nil, nil, &plan); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range plan.Entries {
		fmt.Fprintf(out, "%s %s\n", e.ID, e.URL)
		if e.TargetFolder != "" {
			fmt.Fprintf(out, "  move to folder %s (%s)\n", e.TargetFolder, e.Hostname)
		}
		if e.RewrittenURL != "" {
			fmt.Fprintf(out, "  rewrite to %s\n", e.RewrittenURL)
		}
	}
	fmt.Fprintf(out, "%d moves, %d rewrites\n", plan.Moves, plan.Rewrites)
	return nil
}
