package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	httpserver "github.com/fyrsmithlabs/bookmarkd/internal/http"
	"github.com/fyrsmithlabs/bookmarkd/internal/messaging"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/spf13/cobra"
)

// cleanCmd requests a cleaning pass
var cleanCmd = &cobra.Command{
	Use:   "clean <bookmarks|history>",
	Short: "Request a cleaning pass",
	Long: `Send a clean message to bookmarkd on behalf of the extension.

The server starts a pass when the category is idle and reports "running"
when a pass is already in progress.

Examples:
  # Clean bookmarks
  bookmarkctl clean bookmarks --extension-id my-extension

  # Clean history using BOOKMARKD_EXTENSION_ID
  bookmarkctl clean history`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(rules.CategoryBookmarks), string(rules.CategoryHistory)},
	RunE:      runClean,
}

// statusCmd shows the cleaning state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cleaning state per category",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// errUntrusted is reported when the server ignores the request.
var errUntrusted = errors.New("request ignored: extension id is not trusted")

// senderHeader carries --extension-id for requests the server only accepts
// from the trusted extension.
func senderHeader() (http.Header, error) {
	if extensionID == "" {
		return nil, fmt.Errorf("--extension-id is required")
	}
	header := http.Header{}
	header.Set(httpserver.HeaderExtensionID, extensionID)
	return header, nil
}

// runClean handles the clean command
func runClean(cmd *cobra.Command, args []string) error {
	var msgType string
	switch rules.Category(args[0]) {
	case rules.CategoryBookmarks:
		msgType = messaging.TypeCleanBookmarks
	case rules.CategoryHistory:
		msgType = messaging.TypeCleanHistory
	default:
		return fmt.Errorf("unknown category %q (must be bookmarks or history)", args[0])
	}
	header, err := senderHeader()
	if err != nil {
		return err
	}

	var resp messaging.Response
	status, err := call(http.MethodPost, "/api/v1/messages", messaging.Message{Type: msgType}, header, &resp)
	if err != nil {
		return err
	}
	if status == http.StatusNoContent {
		return errUntrusted
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], resp.Status)
	return nil
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	var resp httpserver.CleaningStatusResponse
	if _, err := call(http.MethodGet, "/api/v1/cleaning/status", nil, nil, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, category := range rules.Categories {
		st, ok := resp[string(category)]
		if !ok {
			continue
		}
		state := "idle"
		if st.Running {
			state = "running"
		}
		fmt.Fprintf(out, "%s: %s\n", category, state)

		if res := st.LastResult; res != nil {
			fmt.Fprintf(out, "  last pass %s finished %s (%s)\n",
				res.PassID, res.FinishedAt.Format(time.RFC3339), res.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  rules=%d candidates=%d deleted=%d failed=%d skipped=%d\n",
				res.Rules, res.Candidates, res.Deleted, res.Failed, res.Skipped)
			if res.Error != "" {
				fmt.Fprintf(out, "  error: %s\n", res.Error)
			}
		}
	}
	return nil
}
