package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bizconnect/internal/domain/repository"
)

type firestoreBusinessRepository struct {
	client *firestore.Client
}

// NewFirestoreBusinessRepository checks the "businesses" collection; a document per business id.
func NewFirestoreBusinessRepository(client *firestore.Client) repository.BusinessRepository {
	return &firestoreBusinessRepository{
		client: client,
	}
}

func (r *firestoreBusinessRepository) Exists(ctx context.Context, businessID string) (bool, error) {
	_, err := r.client.Collection("businesses").Doc(businessID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, firestoreError("look up business", err)
	}
	return true, nil
}
