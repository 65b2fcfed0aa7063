package inventory

import (
	"context"

	"github.com/shu-io/clinic/internal/platform/store"
)

// Repository persists the ledger as a whole snapshot. Load reports
// found=false when no document has ever been written, which the service
// treats as a fresh install to be seeded with the default catalog.
type Repository interface {
	Load(ctx context.Context) (medicines map[string]Medicine, found bool, err error)
	Save(ctx context.Context, medicines map[string]Medicine) error
}

type snapshotRepo struct {
	store store.Store
}

// NewSnapshotRepo returns a Repository backed by the medicines collection of
// the given document store.
func NewSnapshotRepo(s store.Store) Repository {
	return &snapshotRepo{store: s}
}

func (r *snapshotRepo) Load(ctx context.Context) (map[string]Medicine, bool, error) {
	doc := map[string]Medicine{}
	found, err := r.store.Load(ctx, store.CollectionMedicines, &doc)
	if err != nil {
		return nil, false, err
	}
	for name, m := range doc {
		m.Name = name
		doc[name] = m
	}
	return doc, found, nil
}

func (r *snapshotRepo) Save(ctx context.Context, medicines map[string]Medicine) error {
	return r.store.Save(ctx, store.CollectionMedicines, medicines)
}
