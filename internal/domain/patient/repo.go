package patient

import (
	"context"

	"github.com/shu-io/clinic/internal/platform/store"
)

// Repository persists the registry as a whole snapshot, one document for all
// patients. A registry that has never been saved loads as empty.
type Repository interface {
	Load(ctx context.Context) (patients map[string]Patient, err error)
	Save(ctx context.Context, patients map[string]Patient) error
}

type snapshotRepo struct {
	store store.Store
}

// NewSnapshotRepo returns a Repository backed by the patients collection of
// the given document store.
func NewSnapshotRepo(s store.Store) Repository {
	return &snapshotRepo{store: s}
}

func (r *snapshotRepo) Load(ctx context.Context) (map[string]Patient, error) {
	doc := map[string]Patient{}
	if _, err := r.store.Load(ctx, store.CollectionPatients, &doc); err != nil {
		return nil, err
	}
	for name, p := range doc {
		p.Name = name
		doc[name] = p
	}
	return doc, nil
}

func (r *snapshotRepo) Save(ctx context.Context, patients map[string]Patient) error {
	return r.store.Save(ctx, store.CollectionPatients, patients)
}
