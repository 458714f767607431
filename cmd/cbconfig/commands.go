package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kheast/cb-config/internal/codec"
	"github.com/kheast/cb-config/internal/config"
	"github.com/kheast/cb-config/internal/document"
	"github.com/kheast/cb-config/internal/schema"
)

// --- local file commands ---

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := document.Load(args[0])
		if err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				printError("%s failed validation:", args[0])
				for _, f := range verr.Fields {
					fmt.Fprintf(os.Stderr, "  %s: %s\n", colorize(colorBold, f.Path), f.Message)
				}
				return fmt.Errorf("%d validation error(s)", len(verr.Fields))
			}
			return err
		}
		printSuccess("%s is valid", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show a configuration file or one of its projections",
	Long: `Show a configuration file or one of its projections.

Examples:
  cbconfig show assistant.yaml
  cbconfig show assistant.yaml --prompt
  cbconfig show assistant.yaml --datasources`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetBool("prompt")
		datasources, _ := cmd.Flags().GetBool("datasources")

		doc, err := document.Load(args[0])
		if err != nil {
			return err
		}

		switch {
		case prompt:
			fmt.Println(doc.CompiledPrompt())
		case datasources:
			for _, id := range doc.DatasourceIDs() {
				fmt.Println(id)
			}
		default:
			text, err := doc.Dump(doc.Source)
			if err != nil {
				return err
			}
			fmt.Println(text)
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a configuration file between JSON and YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		output, _ := cmd.Flags().GetString("output")

		format, err := codec.ParseFormat(to)
		if err != nil {
			return err
		}

		doc, err := document.Load(args[0])
		if err != nil {
			return err
		}
		text, err := doc.Dump(format)
		if err != nil {
			return err
		}

		if output == "" {
			fmt.Println(text)
			return nil
		}
		if err := os.WriteFile(output, []byte(text+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		printSuccess("Wrote %s", output)
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("prompt", false, "print the compiled system prompt")
	showCmd.Flags().Bool("datasources", false, "print datasource portal ids")
	convertCmd.Flags().String("to", "json", "target format (json or yaml)")
	convertCmd.Flags().String("output", "", "output file path (default: stdout)")
}

// --- store commands (talk to a running server) ---

type configurationRow struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Name     string `json:"name"`
	Format   string `json:"format"`
	State    string `json:"state"`
	Modified string `json:"modified"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/configurations")
		if err != nil {
			return err
		}

		var rows []configurationRow
		if err := decodeJSON(resp, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No configurations found.")
			return nil
		}

		for _, r := range rows {
			fmt.Printf("%s  %-8s %-11s %s\n",
				colorize(colorCyan, fmt.Sprintf("%6d", r.ID)),
				r.State,
				r.Filename,
				r.Name,
			)
		}
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Store a configuration file on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatStr, _ := cmd.Flags().GetString("format")
		draft, _ := cmd.Flags().GetBool("draft")

		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		raw, err := codec.Parse(string(text))
		if err != nil {
			return err
		}

		if formatStr == "" {
			formatStr = string(codec.Detect(string(text)))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/configurations", map[string]any{
			"format":   formatStr,
			"draft":    draft,
			"document": raw,
		})
		if err != nil {
			return err
		}

		var created configurationRow
		if err := decodeJSON(resp, &created); err != nil {
			return err
		}
		printSuccess("Created configuration %d (%s)", created.ID, created.Name)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a stored configuration as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/configurations/" + args[0])
		if err != nil {
			return err
		}

		var detail any
		if err := decodeJSON(resp, &detail); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/configurations/" + args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted configuration %s", args[0])
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a stored configuration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/configurations/"+args[0]+"/rename", map[string]string{
			"name": args[1],
		})
		if err != nil {
			return err
		}

		var renamed configurationRow
		if err := decodeJSON(resp, &renamed); err != nil {
			return err
		}
		printSuccess("Renamed configuration %d to %s", renamed.ID, renamed.Name)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a stored configuration document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatStr, _ := cmd.Flags().GetString("format")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/configurations/" + args[0] + "/export?format=" + formatStr)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
			return err
		}
		fmt.Println()
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <id>",
	Short: "Show the audit trail for a configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/configurations/%s/audit?limit=%d", args[0], limit))
		if err != nil {
			return err
		}

		var entries []struct {
			Action    string `json:"action"`
			Detail    string `json:"detail"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No audit entries found.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%s  %-14s %s\n", e.CreatedAt, colorize(colorCyan, e.Action), e.Detail)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().String("format", "", "storage format (json or yaml, default: detected)")
	createCmd.Flags().Bool("draft", false, "store as a draft without a canonical file")
	exportCmd.Flags().String("format", "json", "export format (json or yaml)")
	auditCmd.Flags().Int("limit", 50, "maximum number of entries")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
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
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
