package custody

import (
	"context"

	id "custos/pkg/domain"
)

// Store persists assets. Implementations return sentinel.ErrNotFound for
// unknown tags.
type Store interface {
	Get(ctx context.Context, tag id.AssetTag) (Asset, error)
	Save(ctx context.Context, asset Asset) error
	List(ctx context.Context) ([]Asset, error)
}
