package repository

import "context"

// BusinessRepository is the read-only view of the business directory used by messaging.
type BusinessRepository interface {
	Exists(ctx context.Context, businessID string) (bool, error)
}
