// Package builtins defines the code-defined tool specifications merged
// into the registry at lowest priority: a catalog entry with the same
// name replaces a built-in.
package builtins

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/opspilot/toolgate/pkg/assets"
	"github.com/opspilot/toolgate/pkg/catalog"
)

const hostPattern = `^[a-zA-Z0-9][a-zA-Z0-9.\-]*$`

func intPtr(v int64) *int64 { return &v }

// All returns every built-in tool specification. The inventory may be
// nil, in which case the asset tools report the inventory as
// unavailable instead of being dropped from the registry.
func All(inventory assets.Inventory) []catalog.ToolSpec {
	return []catalog.ToolSpec{
		shellPing(),
		dnsLookup(),
		tcpPortCheck(),
		httpCheck(),
		traceroute(),
		diskUsage(),
		assetCount(inventory),
		assetSearch(inventory),
		windowsListDirectory(),
		windowsServiceStatus(),
		linuxServiceStatus(),
	}
}

func shellPing() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "shell_ping",
		DisplayName: "Ping",
		Description: "Send ICMP echo requests to a host and report reachability and latency.",
		Category:    "network",
		Platform:    catalog.PlatformCross,
		Source:      catalog.SourceLocal,
		Command:     []string{"ping", "-c", "{{count}}", "-W", "2", "{{host}}"},
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Description: "Target hostname or IP", Required: true, Pattern: hostPattern},
			{Name: "count", Type: catalog.TypeInteger, Description: "Number of echo requests", Default: 4, MinValue: intPtr(1), MaxValue: intPtr(20)},
		},
		TimeoutSeconds: 30,
		Tags:           []string{"network", "diagnostics"},
	}
}

func dnsLookup() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "dns_lookup",
		DisplayName: "DNS Lookup",
		Description: "Resolve a hostname to its IP addresses.",
		Category:    "network",
		Platform:    catalog.PlatformCross,
		Source:      catalog.SourceLocal,
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Description: "Hostname to resolve", Required: true, Pattern: hostPattern},
		},
		TimeoutSeconds: 10,
		Tags:           []string{"network", "dns"},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			host, _ := params["host"].(string)
			addrs, err := net.DefaultResolver.LookupHost(ctx, host)
			if err != nil {
				return nil, 1, fmt.Errorf("lookup %s: %w", host, err)
			}
			return map[string]interface{}{"host": host, "addresses": addrs}, 0, nil
		},
	}
}

func tcpPortCheck() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "tcp_port_check",
		DisplayName: "TCP Port Check",
		Description: "Test whether a TCP port on a host accepts connections.",
		Category:    "network",
		Platform:    catalog.PlatformCross,
		Source:      catalog.SourceLocal,
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Description: "Target hostname or IP", Required: true, Pattern: hostPattern},
			{Name: "port", Type: catalog.TypeInteger, Description: "TCP port", Required: true, MinValue: intPtr(1), MaxValue: intPtr(65535)},
		},
		TimeoutSeconds: 15,
		Tags:           []string{"network", "diagnostics"},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			host, _ := params["host"].(string)
			port := paramInt(params["port"])

			addr := net.JoinHostPort(host, strconv.FormatInt(port, 10))
			var d net.Dialer
			start := time.Now()
			conn, err := d.DialContext(ctx, "tcp", addr)
			elapsed := time.Since(start)
			if err != nil {
				return map[string]interface{}{
					"host": host, "port": port, "open": false, "error": err.Error(),
				}, 1, nil
			}
			conn.Close()
			return map[string]interface{}{
				"host": host, "port": port, "open": true, "connect_ms": elapsed.Milliseconds(),
			}, 0, nil
		},
	}
}

func httpCheck() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "http_check",
		DisplayName: "HTTP Check",
		Description: "Fetch a URL and report the status code and response time.",
		Category:    "network",
		Platform:    catalog.PlatformCross,
		Source:      catalog.SourceLocal,
		Parameters: []catalog.Parameter{
			{Name: "url", Type: catalog.TypeString, Description: "URL to fetch", Required: true, Pattern: `^https?://`},
			{Name: "method", Type: catalog.TypeEnum, Description: "HTTP method", EnumValues: []string{"GET", "HEAD"}, Default: "GET"},
		},
		TimeoutSeconds: 20,
		Tags:           []string{"network", "http"},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			rawURL, _ := params["url"].(string)
			method, _ := params["method"].(string)
			if method == "" {
				method = http.MethodGet
			}

			req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
			if err != nil {
				return nil, 1, err
			}

			start := time.Now()
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return nil, 1, fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			return map[string]interface{}{
				"url":         rawURL,
				"status_code": resp.StatusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			}, 0, nil
		},
	}
}

func traceroute() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "traceroute",
		DisplayName: "Traceroute",
		Description: "Trace the network path to a host.",
		Category:    "network",
		Platform:    catalog.PlatformLinux,
		Source:      catalog.SourceLocal,
		Command:     []string{"traceroute", "-m", "{{max_hops}}", "{{host}}"},
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Description: "Target hostname or IP", Required: true, Pattern: hostPattern},
			{Name: "max_hops", Type: catalog.TypeInteger, Description: "Maximum hops", Default: 15, MinValue: intPtr(1), MaxValue: intPtr(64)},
		},
		TimeoutSeconds: 60,
		Tags:           []string{"network", "diagnostics"},
	}
}

func diskUsage() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "disk_usage",
		DisplayName: "Disk Usage",
		Description: "Report filesystem usage for a path on the gateway host.",
		Category:    "system",
		Platform:    catalog.PlatformLinux,
		Source:      catalog.SourceLocal,
		Command:     []string{"df", "-h", "{{path}}"},
		Parameters: []catalog.Parameter{
			{Name: "path", Type: catalog.TypeString, Description: "Filesystem path", Default: "/"},
		},
		TimeoutSeconds: 10,
		Tags:           []string{"system", "storage"},
	}
}

func assetCount(inventory assets.Inventory) catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "asset_count",
		DisplayName: "Asset Count",
		Description: "Count managed assets in the inventory, optionally filtered by platform or site.",
		Category:    "assets",
		Platform:    catalog.PlatformCross,
		Source:      catalog.SourceLocal,
		Parameters: []catalog.Parameter{
			{Name: "platform", Type: catalog.TypeEnum, Description: "Platform filter", EnumValues: []string{"windows", "linux", "any"}, Default: "any"},
			{Name: "site", Type: catalog.TypeString, Description: "Site filter"},
		},
		TimeoutSeconds: 15,
		Tags:           []string{"assets"},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			if inventory == nil {
				return nil, 1, fmt.Errorf("asset inventory is not configured")
			}

			filter := assets.InventoryFilter{}
			if p, _ := params["platform"].(string); p != "" && p != "any" {
				filter.Platform = p
			}
			if s, _ := params["site"].(string); s != "" {
				filter.Site = s
			}

			count, err := inventory.Count(ctx, filter)
			if err != nil {
				return nil, 1, fmt.Errorf("inventory count failed: %w", err)
			}
			return map[string]interface{}{"count": count}, 0, nil
		},
	}
}

func assetSearch(inventory assets.Inventory) catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "asset_search",
		DisplayName: "Asset Search",
		Description: "Search the asset inventory by hostname, IP or owner.",
		Category:    "assets",
		Platform:    catalog.PlatformCross,
		Source:      catalog.SourceLocal,
		Parameters: []catalog.Parameter{
			{Name: "query", Type: catalog.TypeString, Description: "Search text", Required: true},
			{Name: "limit", Type: catalog.TypeInteger, Description: "Maximum results", Default: 10, MinValue: intPtr(1), MaxValue: intPtr(100)},
		},
		TimeoutSeconds: 15,
		Tags:           []string{"assets"},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			if inventory == nil {
				return nil, 1, fmt.Errorf("asset inventory is not configured")
			}

			query, _ := params["query"].(string)
			limit := int(paramInt(params["limit"]))

			found, err := inventory.Search(ctx, query, limit)
			if err != nil {
				return nil, 1, fmt.Errorf("inventory search failed: %w", err)
			}
			return map[string]interface{}{"assets": found, "total": len(found)}, 0, nil
		},
	}
}

func windowsListDirectory() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "windows_list_directory",
		DisplayName: "Windows List Directory",
		Description: "List a directory on a remote Windows host over WinRM.",
		Category:    "windows",
		Platform:    catalog.PlatformWindows,
		Source:      catalog.SourcePipeline,
		AssetAware:  true,
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Description: "Target Windows host", Required: true, Pattern: hostPattern},
			{Name: "path", Type: catalog.TypeString, Description: "Directory path", Required: true},
			{Name: "username", Type: catalog.TypeString, Description: "Account for the connection"},
			{Name: "password", Type: catalog.TypeString, Description: "Password for the connection", Secret: true},
		},
		TimeoutSeconds: 60,
		RequiresAdmin:  true,
		RedactPatterns: []string{`(?i)password["\s:=]+\S+`},
		Tags:           []string{"windows", "filesystem"},
	}
}

func windowsServiceStatus() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "windows_service_status",
		DisplayName: "Windows Service Status",
		Description: "Query the state of a service on a remote Windows host.",
		Category:    "windows",
		Platform:    catalog.PlatformWindows,
		Source:      catalog.SourcePipeline,
		AssetAware:  true,
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Description: "Target Windows host", Required: true, Pattern: hostPattern},
			{Name: "service_name", Type: catalog.TypeString, Description: "Service name", Required: true},
			{Name: "username", Type: catalog.TypeString, Description: "Account for the connection"},
			{Name: "password", Type: catalog.TypeString, Description: "Password for the connection", Secret: true},
		},
		TimeoutSeconds: 45,
		RequiresAdmin:  true,
		RedactPatterns: []string{`(?i)password["\s:=]+\S+`},
		Tags:           []string{"windows", "services"},
	}
}

func linuxServiceStatus() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "linux_service_status",
		DisplayName: "Linux Service Status",
		Description: "Query the state of a systemd unit on a remote Linux host over SSH.",
		Category:    "linux",
		Platform:    catalog.PlatformLinux,
		Source:      catalog.SourcePipeline,
		AssetAware:  true,
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Description: "Target Linux host", Required: true, Pattern: hostPattern},
			{Name: "service_name", Type: catalog.TypeString, Description: "Unit name", Required: true},
			{Name: "username", Type: catalog.TypeString, Description: "Account for the connection"},
		},
		TimeoutSeconds: 45,
		Tags:           []string{"linux", "services"},
	}
}

func paramInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
