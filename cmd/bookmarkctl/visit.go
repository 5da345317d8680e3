package main

import (
	"fmt"
	"net/http"

	httpserver "github.com/fyrsmithlabs/bookmarkd/internal/http"
	"github.com/spf13/cobra"
)

var visitTitle string

// visitCmd records a page visit
var visitCmd = &cobra.Command{
	Use:   "visit <url>",
	Short: "Record a page visit",
	Long: `Record a page visit in the history. Visits matching a history
cleaning rule are removed again right away.

Examples:
  bookmarkctl visit https://example.com/page --title "Example"`,
	Args: cobra.ExactArgs(1),
	RunE: runVisit,
}

func init() {
	visitCmd.Flags().StringVar(&visitTitle, "title", "", "page title")
}

// runVisit handles the visit command
func runVisit(cmd *cobra.Command, args []string) error {
	req := httpserver.VisitRequest{URL: args[0], Title: visitTitle}
	if _, err := call(http.MethodPost, "/api/v1/history/visits", req, nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recorded %s\n", args[0])
	return nil
}
