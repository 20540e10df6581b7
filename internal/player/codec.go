package player

import (
	"context"
	"fmt"
)

// Negotiate walks the candidate list in order and returns the first codec
// the host accepts. The list is fixed configuration, so a miss is terminal
// for the session and is never retried with different input.
func Negotiate(ctx context.Context, host Host, candidates []string) (string, error) {
	for _, codec := range candidates {
		ok, err := host.Supports(ctx, codec)
		if err != nil {
			return "", fmt.Errorf("capability check %q: %w", codec, err)
		}
		if ok {
			return codec, nil
		}
	}
	return "", ErrNoSupportedCodec
}
