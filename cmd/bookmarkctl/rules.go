package main

import (
	"fmt"
	"net/http"
	"net/url"

	httpserver "github.com/fyrsmithlabs/bookmarkd/internal/http"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/spf13/cobra"
)

// rulesCmd groups the cleaning rule commands
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List and edit cleaning rules",
	Long: `List and edit cleaning rules. Editing requires the enableediting
preference to be on and is only accepted from the trusted extension id.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cleaning rules in order",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <hostname>",
	Short: "Add or replace a cleaning rule",
	Long: `Add or replace the cleaning rule for a hostname. Without flags the
default rule is stored (subdomains and history).

Examples:
  # Default rule
  bookmarkctl rules add example.com --extension-id my-extension

  # Clean bookmarks only, exact hostname
  bookmarkctl rules add example.com --bookmarks --history=false --subdomains=false`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesAdd,
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove <hostname>",
	Short: "Remove a cleaning rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesRemove,
}

func init() {
	rulesAddCmd.Flags().Bool("subdomains", rules.DefaultCleaningRule.Subdomains, "also match subdomains")
	rulesAddCmd.Flags().Bool("bookmarks", rules.DefaultCleaningRule.Bookmarks, "clean bookmarks")
	rulesAddCmd.Flags().Bool("history", rules.DefaultCleaningRule.History, "clean history")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
}

// runRulesList handles the rules list command
func runRulesList(cmd *cobra.Command, args []string) error {
	rs := rules.NewRuleSet()
	if _, err := call(http.MethodGet, "/api/v1/rules/cleaning", nil, nil, rs); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rs.Len() == 0 {
		fmt.Fprintln(out, "no cleaning rules")
		return nil
	}
	for hostname, props := range rs.All() {
		fmt.Fprintf(out, "%s subdomains=%t bookmarks=%t history=%t\n",
			hostname, props.Subdomains, props.Bookmarks, props.History)
	}
	return nil
}

// runRulesAdd handles the rules add command
func runRulesAdd(cmd *cobra.Command, args []string) error {
	header, err := senderHeader()
	if err != nil {
		return err
	}

	var body any
	flags := cmd.Flags()
	if flags.Changed("subdomains") || flags.Changed("bookmarks") || flags.Changed("history") {
		props := rules.DefaultCleaningRule
		props.Subdomains, _ = flags.GetBool("subdomains")
		props.Bookmarks, _ = flags.GetBool("bookmarks")
		props.History, _ = flags.GetBool("history")
		body = props
	}

	var resp httpserver.RuleResponse
	status, err := call(http.MethodPut, "/api/v1/rules/cleaning/"+url.PathEscape(args[0]), body, header, &resp)
	if err != nil {
		return err
	}
	if status == http.StatusNoContent {
		return errUntrusted
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s subdomains=%t bookmarks=%t history=%t\n",
		resp.Hostname, resp.Rule.Subdomains, resp.Rule.Bookmarks, resp.Rule.History)
	return nil
}

// runRulesRemove handles the rules remove command
func runRulesRemove(cmd *cobra.Command, args []string) error {
	header, err := senderHeader()
	if err != nil {
		return err
	}

	if _, err := call(http.MethodDelete, "/api/v1/rules/cleaning/"+url.PathEscape(args[0]), nil, header, nil); err != nil {
		return err
	}

	// a dropped request is also 204, so check the rule is gone
	rs := rules.NewRuleSet()
	if _, err := call(http.MethodGet, "/api/v1/rules/cleaning", nil, nil, rs); err != nil {
		return err
	}
	if _, ok := rs.Get(args[0]); ok {
		return errUntrusted
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
	return nil
}
