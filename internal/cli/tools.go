package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// Operator commands that talk to a running gateway over its HTTP API.

var (
	listPlatform string
	listCategory string
	execParams   []string
	execTraceID  string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and invoke tools on a running gateway",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE:  runToolsList,
}

var toolsReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the tool catalog",
	RunE:  runToolsReload,
}

var toolsExecCmd = &cobra.Command{
	Use:   "exec <tool>",
	Short: "Execute a tool",
	Long: `Execute a tool through the gateway. Parameters are passed as
repeated --param key=value flags; values parse as JSON when possible,
otherwise as strings.`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsExec,
}

func init() {
	toolsListCmd.Flags().StringVar(&listPlatform, "platform", "", "filter by platform")
	toolsListCmd.Flags().StringVar(&listCategory, "category", "", "filter by category")
	toolsExecCmd.Flags().StringArrayVarP(&execParams, "param", "p", nil, "tool parameter key=value")
	toolsExecCmd.Flags().StringVar(&execTraceID, "trace-id", "", "trace id to propagate")

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsReloadCmd)
	toolsCmd.AddCommand(toolsExecCmd)
	rootCmd.AddCommand(toolsCmd)
}

func gatewayClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}

func runToolsList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if listPlatform != "" {
		q.Set("platform", listPlatform)
	}
	if listCategory != "" {
		q.Set("category", listCategory)
	}

	endpoint := gatewayAddr + "/tools"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	resp, err := gatewayClient().Get(endpoint)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Tools []struct {
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
			Platform    string `json:"platform"`
			Source      string `json:"source"`
			Category    string `json:"category"`
		} `json:"tools"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("invalid gateway response: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPLATFORM\tSOURCE\tCATEGORY")
	for _, t := range body.Tools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Platform, t.Source, t.Category)
	}
	w.Flush()
	fmt.Printf("%d tools\n", body.Total)

	return nil
}

func runToolsReload(cmd *cobra.Command, args []string) error {
	resp, err := gatewayClient().Post(gatewayAddr+"/tools/reload", "application/json", nil)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(bytes.TrimSpace(payload)))
	return nil
}

func runToolsExec(cmd *cobra.Command, args []string) error {
	params := make(map[string]interface{}, len(execParams))
	for _, kv := range execParams {
		key, value, err := splitParam(kv)
		if err != nil {
			return err
		}
		params[key] = value
	}

	body, err := json.Marshal(map[string]interface{}{
		"name":     args[0],
		"params":   params,
		"trace_id": execTraceID,
	})
	if err != nil {
		return err
	}

	resp, err := gatewayClient().Post(gatewayAddr+"/tools/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace(payload), "", "  "); err != nil {
		fmt.Println(string(payload))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

// splitParam parses key=value, decoding the value as JSON when it looks
// like JSON so integers and booleans keep their type.
func splitParam(kv string) (string, interface{}, error) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			key := kv[:i]
			raw := kv[i+1:]
			if key == "" {
				return "", nil, fmt.Errorf("invalid parameter %q: empty key", kv)
			}
			var decoded interface{}
			if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
				return key, decoded, nil
			}
			return key, raw, nil
		}
	}
	return "", nil, fmt.Errorf("invalid parameter %q: expected key=value", kv)
}
