package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"tradepost/internal/domain/entity"
)

// firestoreListingRepository is the default Listings collaborator: a
// read-only view of the listings service's collection. The chat core never
// writes here.
type firestoreListingRepository struct {
	client *firestore.Client
}

func NewFirestoreListingRepository(client *firestore.Client) *firestoreListingRepository {
	return &firestoreListingRepository{
		client: client,
	}
}

func (r *firestoreListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	doc, err := r.client.Collection(listingCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("Listing", err)
	}

	var listing entity.Listing
	if err := doc.DataTo(&listing); err != nil {
		return nil, mapFirestoreError("Listing", err)
	}
	listing.ID = doc.Ref.ID

	return &listing, nil
}
