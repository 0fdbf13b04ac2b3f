package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"go.uber.org/zap"
)

// SignatureVerifier tries every configured scheme in order
type SignatureVerifier struct {
	schemes []ports.SignatureScheme
	logger  *zap.Logger
}

// NewSignatureVerifier creates a verifier over schemes
func NewSignatureVerifier(logger *zap.Logger, schemes ...ports.SignatureScheme) *SignatureVerifier {
	return &SignatureVerifier{schemes: schemes, logger: logger}
}

// Verify returns nil as soon as one scheme confirms that address signed
// message. An inconclusive scheme never fails the whole check on its own.
func (v *SignatureVerifier) Verify(ctx context.Context, address, message, signature string) error {
	var unavailable error
	for _, scheme := range v.schemes {
		verdict, err := scheme.Verify(ctx, address, message, signature)
		switch verdict {
		case core.Confirmed:
			v.logger.Debug("signature confirmed", zap.String("scheme", scheme.Name()), zap.String("address", address))
			return nil
		case core.Inconclusive:
			v.logger.Debug("signature scheme inconclusive", zap.String("scheme", scheme.Name()), zap.Error(err))
			if errors.Is(err, core.ErrLedgerUnavailable) && unavailable == nil {
				unavailable = err
			}
		}
	}
	if unavailable != nil {
		return fmt.Errorf("signature could not be checked: %w", unavailable)
	}
	return core.ErrSignatureInvalid
}
