// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"fmt"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// TransientError marks a provider failure (network, timeout, missing
// snapshot) that skips the provider for this run. The batch continues
// with zero records from that source.
type TransientError struct {
	Provider types.Provider
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("provider %s: transient failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// AuthError marks a credential or quota failure from a provider. It is
// surfaced in the run summary but never retried here.
type AuthError struct {
	Provider types.Provider
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %s: auth/quota failure: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// InvariantViolation reports a canonical-track creation race: the
// cascade saw no match yet the store already held the identity when the
// insert ran. The per-identity serialization boundary was bypassed.
// This is the one condition fatal to the whole batch.
type InvariantViolation struct {
	NormalizedArtist string
	NormalizedTitle  string
	ISRC             string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("duplicate canonical track creation for %q / %q (isrc %q): identity serialization was bypassed",
		e.NormalizedArtist, e.NormalizedTitle, e.ISRC)
}
