package permissions

import (
	"context"

	"github.com/lnkday/authcore/pkg/observability"
)

// NoopVersionStore degrades version tracking to "always valid": no
// credential is ever revoked early. Acceptable for local and dev
// deployments only; construction logs a warning so the degradation is
// explicit, never silent. Config validation refuses it in production.
type NoopVersionStore struct{}

// NewNoopVersionStore builds the degraded store and announces it.
func NewNoopVersionStore(logger *observability.Logger) *NoopVersionStore {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	logger.Warn("permission version store disabled: revocation will wait for credential expiry")
	return &NoopVersionStore{}
}

// Get always reports version 0, which every credential satisfies.
func (s *NoopVersionStore) Get(ctx context.Context, principalID string) (int64, error) {
	return 0, nil
}

// Increment is a no-op; revocation is unavailable.
func (s *NoopVersionStore) Increment(ctx context.Context, principalID string) (int64, error) {
	return 0, nil
}

// Set is a no-op.
func (s *NoopVersionStore) Set(ctx context.Context, principalID string, version int64) error {
	return nil
}

// Delete is a no-op.
func (s *NoopVersionStore) Delete(ctx context.Context, principalID string) error {
	return nil
}

// IncrementBatch is a no-op.
func (s *NoopVersionStore) IncrementBatch(ctx context.Context, principalIDs []string) error {
	return nil
}
