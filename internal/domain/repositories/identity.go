package repositories

import (
	"context"
)

// IdentityRepository stores the external id -> account id mapping. mappingKey
// is "<name>:uid", where name is the configured session-sharing namespace.
type IdentityRepository interface {
	// GetByExternalID returns the raw stored account id for externalID, or ""
	// when there is no mapping
	GetByExternalID(ctx context.Context, mappingKey, externalID string) (string, error)

	// LinkIfAbsent records mappingKey[externalID] = uid unless a usable mapping
	// (a positive account id) already exists. It returns the account id stored
	// once the call completes, which differs from uid when another writer got
	// there first.
	LinkIfAbsent(ctx context.Context, mappingKey, externalID string, uid int64) (int64, error)
}
