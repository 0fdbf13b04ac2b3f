package ports

import (
	"context"

	"github.com/layer-3/tollgate/core"
)

// SignatureScheme checks a signature under one message-signing format
type SignatureScheme interface {
	Name() string
	// Verify returns core.Inconclusive together with the reason when the
	// scheme cannot decide
	Verify(ctx context.Context, address, message, signature string) (core.Verdict, error)
}
