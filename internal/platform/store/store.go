// Package store provides durable snapshot storage for the clinic platform.
// Each collection is a single document that is always read and written whole:
// there are no partial updates, transactions, or versioning. The package
// defines the Store interface, a JSON-file implementation, and a Postgres
// implementation backed by a one-row-per-collection document table.
package store

import (
	"context"
	"errors"
)

// Collection names used by the clinic services.
const (
	CollectionMedicines = "medicines"
	CollectionPatients  = "patients"
)

var ErrInvalidCollection = errors.New("collection name is required")

// Store persists whole-document snapshots keyed by collection name.
type Store interface {
	// Load reads the document for collection into out. It returns found=false
	// (and no error) when no document has ever been saved for the collection.
	Load(ctx context.Context, collection string, out interface{}) (found bool, err error)

	// Save replaces the document for collection with doc.
	Save(ctx context.Context, collection string, doc interface{}) error
}
