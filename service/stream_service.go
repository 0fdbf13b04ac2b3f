package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"go.uber.org/zap"
)

// RelayedHeaders are the only origin response headers passed to the caller
var RelayedHeaders = []string{"Content-Type", "Content-Length", "Accept-Ranges", "Content-Range"}

// StreamService authorizes a stream request and opens the media origin.
//
// The balance is checked before the first byte is fetched. If the holder
// transfers the token after that check, the stream that is already running is
// not interrupted; the next request will be refused.
type StreamService struct {
	auth     *AuthService
	oracle   *OwnershipOracle
	locator  *AssetLocator
	origin   *http.Client
	eventPub ports.EventPublisher
	logger   *zap.Logger
}

// NewStreamService creates a stream service
func NewStreamService(
	auth *AuthService,
	oracle *OwnershipOracle,
	locator *AssetLocator,
	origin *http.Client,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
) *StreamService {
	return &StreamService{
		auth:     auth,
		oracle:   oracle,
		locator:  locator,
		origin:   origin,
		eventPub: eventPub,
		logger:   logger,
	}
}

// Open runs the token, ownership and location checks and issues the origin
// request. ctx must be the caller's request context so that a disconnect
// aborts the origin fetch. The caller owns the returned body.
func (s *StreamService) Open(ctx context.Context, token, rawAssetID, rangeHeader string) (*core.Upstream, error) {
	session, err := s.auth.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}

	id, err := ParseAssetID(rawAssetID)
	if err != nil {
		return nil, err
	}

	bal, err := s.oracle.BalanceOf(ctx, session.Address, id)
	if err != nil {
		return nil, err
	}
	if bal.Sign() <= 0 {
		return nil, core.ErrForbidden
	}

	mediaURL, err := s.locator.ResolveMediaLocation(ctx, id)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build origin request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	// byte ranges must refer to the stored bytes, not a transparently gunzipped body
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := s.origin.Do(req)
	if err != nil {
		return nil, fmt.Errorf("origin request failed: %w", err)
	}

	if err := s.eventPub.PublishStreamAuthorized(ctx, session.Address, id.String()); err != nil {
		s.logger.Warn("failed to publish stream event", zap.String("asset_id", id.String()), zap.Error(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &core.Upstream{
			Status:      resp.StatusCode,
			Header:      http.Header{},
			Body:        resp.Body,
			Passthrough: true,
		}, nil
	}

	return &core.Upstream{
		Status: resp.StatusCode,
		Header: filterHeaders(resp.Header),
		Body:   resp.Body,
	}, nil
}

func filterHeaders(src http.Header) http.Header {
	out := http.Header{}
	for _, name := range RelayedHeaders {
		if v := src.Get(name); v != "" {
			out.Set(name, v)
		}
	}
	out.Set("Cache-Control", "no-store")
	return out
}
