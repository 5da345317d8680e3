// Package main implements bookmarkctl, a CLI for manual operations against
// the bookmarkd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	httpserver "github.com/fyrsmithlabs/bookmarkd/internal/http"
	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the bookmarkd HTTP server
	serverURL string
	// extensionID is sent as the sender of extension messages
	extensionID string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bookmarkctl",
	Short: "CLI for bookmarkd HTTP server operations",
	Long: `bookmarkctl is a command-line interface for interacting with the bookmarkd HTTP server.
It can request cleaning passes, inspect the bookmark tree and edit cleaning rules.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9191", "bookmarkd server URL")
	rootCmd.PersistentFlags().StringVar(&extensionID, "extension-id", os.Getenv("BOOKMARKD_EXTENSION_ID"), "sender id for extension messages")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(visitCmd)
	rootCmd.AddCommand(preferencesCmd)
	rootCmd.AddCommand(rulesCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check bookmarkd server health",
	Long: `Check the health status of the bookmarkd HTTP server.

Examples:
  # Check health
  bookmarkctl health

  # Check health on a different server
  bookmarkctl health --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

// preferencesCmd shows the user preferences
var preferencesCmd = &cobra.Command{
	Use:   "preferences",
	Short: "Show user preferences",
	Args:  cobra.NoArgs,
	RunE:  runPreferences,
}

// apiError is returned for non-2xx responses.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
}

// call sends a request to the server and decodes a JSON response into out
// when out is non-nil. It returns the response status code.
func call(method, path string, body any, header http.Header, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := serverURL + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return resp.StatusCode, fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var healthResp httpserver.HealthResponse
	if _, err := call(http.MethodGet, "/health", nil, nil, &healthResp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", healthResp.Status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	return nil
}

// runPreferences handles the preferences command
func runPreferences(cmd *cobra.Command, args []string) error {
	var prefs httpserver.PreferencesResponse
	if _, err := call(http.MethodGet, "/api/v1/preferences", nil, nil, &prefs); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enableediting: %t\n", prefs.EnableEditing)
	return nil
}
