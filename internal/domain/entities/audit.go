package entities

import (
	"encoding/json"
	"time"
)

// AuditLog records an account or settings change made by session sharing
type AuditLog struct {
	ID         string         `json:"id" db:"id"`
	UserID     *int64         `json:"uid,omitempty" db:"user_id"` // null for system events
	Action     AuditAction    `json:"action" db:"action"`
	Resource   AuditResource  `json:"resource" db:"resource"`
	ResourceID *string        `json:"resource_id,omitempty" db:"resource_id"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"` // stored as JSON
	Success    bool           `json:"success" db:"success"`
	ErrorMsg   *string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// AuditAction represents the type of action being audited
type AuditAction string

const (
	ActionAccountCreated  AuditAction = "account.created"
	ActionIdentityLinked  AuditAction = "identity.linked"
	ActionIdentityRaced   AuditAction = "identity.link_lost"
	ActionUserLogout      AuditAction = "user.logout"
	ActionSettingsChanged AuditAction = "settings.changed"
)

// AuditResource represents the type of resource being acted upon
type AuditResource string

const (
	ResourceUser     AuditResource = "user"
	ResourceIdentity AuditResource = "external_identity"
	ResourceSettings AuditResource = "settings"
)

// NewAuditLog creates a new audit log entry
func NewAuditLog(userID *int64, action AuditAction, resource AuditResource) *AuditLog {
	return &AuditLog{
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Success:   true,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithResourceID sets the resource ID
func (a *AuditLog) WithResourceID(resourceID string) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithError marks the audit log as failed with an error message
func (a *AuditLog) WithError(err error) *AuditLog {
	a.Success = false
	msg := err.Error()
	a.ErrorMsg = &msg
	return a
}

// WithMetadata adds metadata to the audit log
func (a *AuditLog) WithMetadata(key string, value any) *AuditLog {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
	return a
}

// MarshalMetadataToJSON converts metadata map to JSON string for storage
func (a *AuditLog) MarshalMetadataToJSON() (string, error) {
	if a.Metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalMetadataFromJSON converts stored JSON back to the metadata map
func (a *AuditLog) UnmarshalMetadataFromJSON(data string) error {
	if data == "" || data == "{}" {
		a.Metadata = make(map[string]any)
		return nil
	}
	return json.Unmarshal([]byte(data), &a.Metadata)
}
