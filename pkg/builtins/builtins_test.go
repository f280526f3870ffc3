package builtins

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/toolgate/pkg/assets"
	"github.com/opspilot/toolgate/pkg/catalog"
)

type stubInventory struct {
	count     int
	countErr  error
	assets    []assets.Asset
	searchErr error

	gotFilter assets.InventoryFilter
	gotQuery  string
	gotLimit  int
}

func (s *stubInventory) Count(ctx context.Context, filter assets.InventoryFilter) (int, error) {
	s.gotFilter = filter
	return s.count, s.countErr
}

func (s *stubInventory) Search(ctx context.Context, query string, limit int) ([]assets.Asset, error) {
	s.gotQuery = query
	s.gotLimit = limit
	return s.assets, s.searchErr
}

func specByName(t *testing.T, specs []catalog.ToolSpec, name string) catalog.ToolSpec {
	t.Helper()
	for _, s := range specs {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("built-in %s not found", name)
	return catalog.ToolSpec{}
}

func TestAll_SpecsAreValid(t *testing.T) {
	for _, spec := range All(&stubInventory{}) {
		t.Run(spec.Name, func(t *testing.T) {
			spec.Normalize()
			assert.NoError(t, spec.Validate())
			assert.True(t, spec.Handler != nil || len(spec.Command) > 0,
				"every built-in needs a handler or a command template")
		})
	}
}

func TestAll_AssetAwareToolsDeclareHost(t *testing.T) {
	for _, spec := range All(nil) {
		if spec.AssetAware {
			assert.True(t, spec.HasHostParam(), "%s is asset-aware but has no host parameter", spec.Name)
		}
	}
}

func TestAll_RemoteWindowsToolsRedactPasswords(t *testing.T) {
	for _, name := range []string{"windows_list_directory", "windows_service_status"} {
		spec := specByName(t, All(nil), name)
		assert.Equal(t, catalog.SourcePipeline, spec.Source)
		assert.NotEmpty(t, spec.RedactPatterns, "%s must redact credential echoes", name)

		pw, ok := spec.Param("password")
		require.True(t, ok)
		assert.True(t, pw.Secret)
	}
}

func TestTCPPortCheck_OpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	spec := specByName(t, All(nil), "tcp_port_check")

	out, code, err := spec.Handler(context.Background(), map[string]interface{}{
		"host": "127.0.0.1",
		"port": int64(port),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	m := out.(map[string]interface{})
	assert.Equal(t, true, m["open"])
}

func TestTCPPortCheck_ClosedPort(t *testing.T) {
	// Bind then close to get a port that is almost certainly not listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	spec := specByName(t, All(nil), "tcp_port_check")

	out, code, err := spec.Handler(context.Background(), map[string]interface{}{
		"host": "127.0.0.1",
		"port": int64(port),
	})
	require.NoError(t, err, "a closed port is a finding, not a tool failure")
	assert.Equal(t, 1, code)

	m := out.(map[string]interface{})
	assert.Equal(t, false, m["open"])
}

func TestDNSLookup_Localhost(t *testing.T) {
	spec := specByName(t, All(nil), "dns_lookup")

	out, code, err := spec.Handler(context.Background(), map[string]interface{}{"host": "localhost"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	m := out.(map[string]interface{})
	assert.NotEmpty(t, m["addresses"])
}

func TestAssetCount(t *testing.T) {
	inv := &stubInventory{count: 12}
	spec := specByName(t, All(inv), "asset_count")

	out, code, err := spec.Handler(context.Background(), map[string]interface{}{
		"platform": "windows",
		"site":     "hq",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, 12, out.(map[string]interface{})["count"])
	assert.Equal(t, assets.InventoryFilter{Platform: "windows", Site: "hq"}, inv.gotFilter)
}

func TestAssetCount_AnyPlatformMeansNoFilter(t *testing.T) {
	inv := &stubInventory{}
	spec := specByName(t, All(inv), "asset_count")

	_, _, err := spec.Handler(context.Background(), map[string]interface{}{"platform": "any"})
	require.NoError(t, err)
	assert.Empty(t, inv.gotFilter.Platform)
}

func TestAssetCount_NoInventory(t *testing.T) {
	spec := specByName(t, All(nil), "asset_count")

	_, code, err := spec.Handler(context.Background(), map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "not configured")
}

func TestAssetSearch(t *testing.T) {
	inv := &stubInventory{assets: []assets.Asset{
		{Hostname: "dc01.corp.local", Platform: "windows"},
	}}
	spec := specByName(t, All(inv), "asset_search")

	out, code, err := spec.Handler(context.Background(), map[string]interface{}{
		"query": "dc",
		"limit": int64(5),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "dc", inv.gotQuery)
	assert.Equal(t, 5, inv.gotLimit)
	assert.Equal(t, 1, out.(map[string]interface{})["total"])
}

func TestAssetSearch_InventoryError(t *testing.T) {
	inv := &stubInventory{searchErr: errors.New("backend down")}
	spec := specByName(t, All(inv), "asset_search")

	_, code, err := spec.Handler(context.Background(), map[string]interface{}{"query": "dc"})
	require.Error(t, err)
	assert.Equal(t, 1, code)
}
