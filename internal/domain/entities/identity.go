package entities

import "time"

// ExternalIdentity binds an id issued by the external login system to a local account.
// Records are keyed by namespace ("<name>:uid") and external id and are never deleted.
type ExternalIdentity struct {
	Namespace  string    `json:"namespace" db:"namespace"`
	ExternalID string    `json:"external_id" db:"external_id"`
	UserID     int64     `json:"uid" db:"user_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Key returns "<namespace>[<externalId>]" for logging
func (i *ExternalIdentity) Key() string {
	return i.Namespace + "[" + i.ExternalID + "]"
}
