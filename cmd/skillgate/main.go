package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skillgate",
	Short: "Skill gateway CLI",
	Long:  "A CLI for calling skills and operating a skill gateway.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(sysCmd())
}

// --- tools ---

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tools", Short: "List and call skills"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.rpc("tools/list", nil)
			if err != nil {
				printError(err.Error())
				return nil
			}
			tools, ok := result["tools"].([]any)
			if !ok {
				printResult(result)
				return nil
			}
			for _, raw := range tools {
				tool, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				fmt.Printf("%s\t%s\n", tool["name"], tool["description"])
			}
			return nil
		},
	}

	callCmd := &cobra.Command{
		Use:   "call <name> [key=value ...]",
		Short: "Call a skill",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			arguments := map[string]any{}

			if rawJSON, _ := cmd.Flags().GetString("args-json"); rawJSON != "" {
				if err := json.Unmarshal([]byte(rawJSON), &arguments); err != nil {
					return fmt.Errorf("invalid --args-json: %w", err)
				}
			}
			for _, kv := range args[1:] {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid key=value pair: %s", kv)
				}
				arguments[parts[0]] = parseValue(parts[1])
			}

			client := newClient()
			result, err := client.rpc("tools/call", map[string]any{
				"name":      name,
				"arguments": arguments,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
	callCmd.Flags().String("args-json", "", "Arguments as a JSON object (key=value pairs override)")

	cmd.AddCommand(listCmd, callCmd)
	return cmd
}

// parseValue decodes a flag value as JSON when possible so numbers, bools,
// and arrays survive; anything else stays a string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// --- token ---

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Access token management (operator)"}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a premium access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			scope, _ := cmd.Flags().GetStringSlice("scope")
			ttl, _ := cmd.Flags().GetString("ttl")
			save, _ := cmd.Flags().GetBool("save")

			client := newClient()
			result, err := client.post("/v1/auth/token/issue", map[string]any{
				"subject": subject,
				"scope":   scope,
				"ttl":     ttl,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			if auth, ok := result["auth"].(map[string]any); ok {
				if tok, ok := auth["token"].(string); ok && save {
					cfg.Token = tok
					if err := saveConfig(); err == nil {
						fmt.Fprintln(os.Stderr, "Token saved to config.")
					}
				}
				printResult(auth)
				return nil
			}
			printResult(result)
			return nil
		},
	}
	issueCmd.Flags().String("subject", "", "Caller identity the token is issued to")
	issueCmd.Flags().StringSlice("scope", []string{"premium:all"}, "Skill scopes to grant")
	issueCmd.Flags().String("ttl", "24h", "Token TTL")
	issueCmd.Flags().Bool("save", false, "Save the issued token as the CLI credential")
	issueCmd.MarkFlagRequired("subject") //nolint:errcheck

	revokeCmd := &cobra.Command{
		Use:   "revoke <jti>",
		Short: "Revoke a token by jti",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			client := newClient()
			_, err := client.post("/v1/auth/token/revoke", map[string]any{
				"jti":    args[0],
				"reason": reason,
			})
			if err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Token revoked.")
			return nil
		},
	}
	revokeCmd.Flags().String("reason", "", "Reason recorded in the audit log")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List issued token metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/auth/token")
			if err != nil {
				printError(err.Error())
				return nil
			}
			tokens, ok := result["data"].([]any)
			if !ok {
				printResult(result)
				return nil
			}
			for _, raw := range tokens {
				if m, ok := raw.(map[string]any); ok {
					printResult(m)
					fmt.Println()
				}
			}
			return nil
		},
	}

	cmd.AddCommand(issueCmd, revokeCmd, listCmd)
	return cmd
}

// --- audit ---

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Audit log inspection (operator)"}

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Query the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			action, _ := cmd.Flags().GetString("action")
			limit, _ := cmd.Flags().GetInt("limit")
			since, _ := cmd.Flags().GetString("since")

			path := fmt.Sprintf("/v1/sys/audit-log?limit=%d", limit)
			if action != "" {
				path += "&action=" + action
			}
			if since != "" {
				path += "&since=" + since
			}

			client := newClient()
			result, err := client.get(path)
			if err != nil {
				printError(err.Error())
				return nil
			}
			entries, ok := result["data"].([]any)
			if !ok {
				printResult(result)
				return nil
			}
			for _, raw := range entries {
				if e, ok := raw.(map[string]any); ok {
					fmt.Printf("%v\t%v\t%v\t%v\n", e["sequence"], e["timestamp"], e["action"], e["payload"])
				}
			}
			return nil
		},
	}
	logCmd.Flags().String("action", "", "Filter by action (e.g. token.issue)")
	logCmd.Flags().Int("limit", 100, "Maximum entries to return")
	logCmd.Flags().String("since", "", "RFC3339 lower bound on entry time")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify audit chain integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/sys/audit/verify")
			if err != nil {
				printError(err.Error())
				return nil
			}
			if intact, _ := result["intact"].(bool); intact {
				printSuccess("Success! Audit chain verified intact.")
				return nil
			}
			printError(fmt.Sprintf("audit chain broken at sequence %v", result["first_broken"]))
			os.Exit(1)
			return nil
		},
	}

	cmd.AddCommand(logCmd, verifyCmd)
	return cmd
}

// --- sys ---

func sysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sys", Short: "Gateway system commands"}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/sys/health")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show gateway discovery info",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/sys/info")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Rebuild the skill catalog (operator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.post("/v1/sys/reload", nil)
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}

	cmd.AddCommand(healthCmd, infoCmd, reloadCmd)
	return cmd
}
