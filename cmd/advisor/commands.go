package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paperdesk/advisor/internal/config"
	"github.com/paperdesk/advisor/internal/storage"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask an investment question",
	Long: `Ask an investment question against the running advisor server.

Examples:
  advisor ask "Should I rebalance into bonds this year?"
  advisor ask --fact cash=10000 --fact risk_tolerance=low "Where should spare cash go?"
  advisor ask --k 8 "What does the guide say about index funds?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")
		factPairs, _ := cmd.Flags().GetStringArray("fact")

		facts := map[string]string{}
		for _, pair := range factPairs {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid --fact %q, expected key=value", pair)
			}
			facts[key] = value
		}

		req := map[string]any{"query": args[0]}
		if k > 0 {
			req["k"] = k
		}
		if len(facts) > 0 {
			req["facts"] = facts
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/advice", req)
		if err != nil {
			return err
		}

		var result struct {
			Advice      string `json:"advice"`
			Outcome     string `json:"outcome"`
			ContextUsed int    `json:"context_used"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Advice)
		if result.Outcome != "ok" {
			printWarning("answered via %s path", result.Outcome)
		}
		return nil
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the reference document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/v1/reference/search?q=" + url.QueryEscape(args[0])
		if k > 0 {
			path += "&k=" + strconv.Itoa(k)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			Results []struct {
				Page  int     `json:"page"`
				Text  string  `json:"text"`
				Score float64 `json:"score"`
			} `json:"results"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Results) == 0 {
			printWarning("no matches (is the reference document loaded?)")
			return nil
		}
		for i, r := range result.Results {
			fmt.Printf("%d. [page %d, score %.3f]\n%s\n\n", i+1, r.Page, r.Score, r.Text)
		}
		return nil
	},
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Inspect the interaction log",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/interactions/?limit=%d", limit))
		if err != nil {
			return err
		}

		var result struct {
			Interactions []storage.Interaction `json:"interactions"`
			Total        int                   `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Interactions) == 0 {
			fmt.Println("no interactions logged")
			return nil
		}
		for _, in := range result.Interactions {
			query := in.Query
			if len(query) > 60 {
				query = query[:60] + "..."
			}
			fmt.Printf("%s  %s  [%s]  %s\n", in.ID, in.CreatedAt.Format("2006-01-02 15:04"), in.Outcome, query)
		}
		fmt.Printf("%d of %d total\n", len(result.Interactions), result.Total)
		return nil
	},
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one interaction in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/interactions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var in storage.Interaction
		if err := decodeJSON(resp, &in); err != nil {
			return err
		}

		printStatus("ID", "%s", in.ID)
		printStatus("When", "%s", in.CreatedAt.Format("2006-01-02 15:04:05"))
		printStatus("Outcome", "%s", in.Outcome)
		printStatus("Context", "%d chunks", in.ContextUsed)
		printStatus("Duration", "%dms", in.DurationMS)
		fmt.Printf("\nQ: %s\n\nA: %s\n", in.Query, in.Answer)
		return nil
	},
}

var interactionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/v1/interactions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Deleted interaction %s", args[0])
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, info := range config.ShowAll(cfg) {
			printStatus(info.Key, "%s", info.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	askCmd.Flags().Int("k", 0, "number of reference chunks to retrieve (1-20)")
	askCmd.Flags().StringArray("fact", nil, "portfolio fact as key=value (repeatable)")

	searchCmd.Flags().Int("k", 0, "maximum number of results (1-20)")

	interactionsListCmd.Flags().Int("limit", 20, "maximum interactions to list")

	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
	interactionsCmd.AddCommand(interactionsDeleteCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
