package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/ipfs"
	"github.com/layer-3/tollgate/ports"
	"go.uber.org/zap"
)

// MediaKeys lists the metadata fields that may carry the playable file, in
// order of preference. Some assets only populate one of them.
var MediaKeys = []string{"animation_url", "audio", "track", "music", "file"}

const maxMetadataBytes = 1 << 20

// AssetLocator resolves a token id to the URL of its media file
type AssetLocator struct {
	ledger  ports.Ledger
	gateway ipfs.Gateway
	client  *http.Client
	logger  *zap.Logger
}

// NewAssetLocator creates a locator
func NewAssetLocator(ledger ports.Ledger, gateway ipfs.Gateway, client *http.Client, logger *zap.Logger) *AssetLocator {
	return &AssetLocator{
		ledger:  ledger,
		gateway: gateway,
		client:  client,
		logger:  logger,
	}
}

// ResolveMediaLocation reads uri(id), fetches the metadata document and
// returns the fetchable media URL found in it.
func (l *AssetLocator) ResolveMediaLocation(ctx context.Context, id *big.Int) (string, error) {
	pointer, err := l.ledger.URI(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
	metaURL := l.gateway.Rewrite(ipfs.ExpandID(strings.TrimSpace(pointer), id))

	meta, err := l.fetchMetadata(ctx, metaURL)
	if err != nil {
		return "", err
	}

	media, ok := ExtractMedia(meta)
	if !ok {
		return "", core.ErrNoMediaInMetadata
	}
	resolved := l.gateway.Rewrite(media)

	l.logger.Debug("resolved media location",
		zap.String("asset_id", id.String()),
		zap.String("metadata", metaURL),
		zap.String("media", resolved))
	return resolved, nil
}

func (l *AssetLocator) fetchMetadata(ctx context.Context, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMetadataFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMetadataFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: gateway answered %d", core.ErrMetadataFetchFailed, resp.StatusCode)
	}

	var meta map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

// ExtractMedia returns the first non-empty string among MediaKeys
func ExtractMedia(meta map[string]any) (string, bool) {
	for _, key := range MediaKeys {
		if v, ok := meta[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
