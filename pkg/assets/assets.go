// Package assets defines the contracts for asset intelligence: resolving
// a target host to a connection profile and credentials, and querying the
// external asset inventory. Inventory storage and credential vaulting are
// external collaborators; this package only speaks their lookup API.
package assets

import (
	"context"
	"fmt"
)

// Asset is one inventory record for a managed host.
type Asset struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	Platform string `json:"platform"`
	Site     string `json:"site,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

// ConnectionProfile describes how to reach a host for a given purpose.
type ConnectionProfile struct {
	Port      int    `json:"port"`
	UseSSL    bool   `json:"use_ssl"`
	Domain    string `json:"domain,omitempty"`
	Transport string `json:"transport,omitempty"`
}

// MissingParam describes one credential field the caller must supply
// before an asset-aware tool can run. Never carries a value.
type MissingParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Secret      bool   `json:"secret"`
	Description string `json:"description,omitempty"`
}

// Resolution is the outcome of one host lookup. When Found is false the
// host has no inventory record and execution proceeds unenriched.
type Resolution struct {
	Found   bool
	Profile *ConnectionProfile

	// Params holds the resolved connection and credential fields to
	// merge into the execution parameter set.
	Params map[string]interface{}

	// SecretKeys names the entries of Params whose values must never
	// be echoed or logged.
	SecretKeys []string
}

// MissingCredentialsError is returned when the host has an inventory
// record but no stored credentials for the requested purpose. It carries
// a machine-readable description of what the caller must supply.
type MissingCredentialsError struct {
	Host    string
	Purpose string
	Missing []MissingParam
	Hint    string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("no stored credentials for %s (purpose %s)", e.Host, e.Purpose)
}

// Resolver resolves a target host to a connection profile and
// credentials. Implementations must not cache credentials past one call.
type Resolver interface {
	Resolve(ctx context.Context, host, purpose string) (*Resolution, error)
}

// Inventory is the read-only view of the asset store consumed by the
// asset_count and asset_search built-ins.
type Inventory interface {
	Count(ctx context.Context, filter InventoryFilter) (int, error)
	Search(ctx context.Context, query string, limit int) ([]Asset, error)
}

// InventoryFilter narrows an asset count. Zero-value fields impose no
// constraint.
type InventoryFilter struct {
	Platform string
	Site     string
}

// NoopResolver is the fallback when no asset service is configured:
// every host resolves to "no record", so execution degrades to
// unenriched rather than failing.
type NoopResolver struct{}

func (NoopResolver) Resolve(ctx context.Context, host, purpose string) (*Resolution, error) {
	return &Resolution{Found: false}, nil
}
