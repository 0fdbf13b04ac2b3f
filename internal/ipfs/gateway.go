// Package ipfs rewrites content-addressed locators into gateway URLs.
package ipfs

import (
	"fmt"
	"math/big"
	"strings"
)

const Scheme = "ipfs://"

// DefaultGateway is used when no gateway base is configured.
const DefaultGateway = "https://gateway.pinata.cloud"

// Gateway rewrites ipfs:// locators onto an HTTP(S) gateway
type Gateway struct {
	base string
}

// NewGateway trims trailing slashes from base.
func NewGateway(base string) Gateway {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultGateway
	}
	return Gateway{base: base}
}

// Base returns the gateway URL without trailing slash.
func (g Gateway) Base() string {
	return g.base
}

// Rewrite maps ipfs://CID/path to <base>/ipfs/CID/path. Anything else is
// returned unchanged.
func (g Gateway) Rewrite(locator string) string {
	if !strings.HasPrefix(locator, Scheme) {
		return locator
	}
	return g.base + "/ipfs/" + strings.TrimPrefix(locator, Scheme)
}

// IsContentAddressed reports whether locator uses the ipfs:// scheme.
func IsContentAddressed(locator string) bool {
	return strings.HasPrefix(locator, Scheme)
}

// ExpandID substitutes the ERC-1155 {id} placeholder with the lowercase,
// zero padded, 64 hex digit form of id.
func ExpandID(uri string, id *big.Int) string {
	if !strings.Contains(uri, "{id}") {
		return uri
	}
	return strings.ReplaceAll(uri, "{id}", fmt.Sprintf("%064x", id))
}
