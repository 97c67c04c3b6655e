package auth

import (
	"errors"
	"testing"

	"github.com/devilmonastery/sessionshare/internal/config"
)

func defaultMapping() config.FieldMapping {
	return config.FromOptions(nil).Payload
}

func TestValidatePayload(t *testing.T) {
	scenario := config.FieldMapping{ID: "sub", Username: "name", Email: "email", Picture: "picture"}
	nested := scenario
	nested.Parent = "profile"

	tests := []struct {
		name    string
		claims  Claims
		mapping config.FieldMapping
		wantErr bool
	}{
		{
			name:    "default keys",
			claims:  Claims{"id": "1", "username": "alice"},
			mapping: defaultMapping(),
		},
		{
			name:    "custom keys",
			claims:  Claims{"sub": "ext-42", "name": "alice", "email": "alice@example.com"},
			mapping: scenario,
		},
		{
			name:    "nested under parent",
			claims:  Claims{"profile": map[string]any{"sub": "ext-7", "name": "bob"}},
			mapping: nested,
		},
		{
			name:    "parent missing",
			claims:  Claims{"sub": "ext-7", "name": "bob"},
			mapping: nested,
			wantErr: true,
		},
		{
			name:    "parent not an object",
			claims:  Claims{"profile": "ext-7"},
			mapping: nested,
			wantErr: true,
		},
		{
			name:    "parent lacks username",
			claims:  Claims{"profile": map[string]any{"sub": "ext-7"}},
			mapping: nested,
			wantErr: true,
		},
		{
			name:    "missing id",
			claims:  Claims{"name": "alice"},
			mapping: scenario,
			wantErr: true,
		},
		{
			name:    "empty username",
			claims:  Claims{"sub": "ext-42", "name": ""},
			mapping: scenario,
			wantErr: true,
		},
		{
			name:    "numeric id",
			claims:  Claims{"sub": float64(42), "name": "alice"},
			mapping: scenario,
			wantErr: true,
		},
		{
			name:    "zero id",
			claims:  Claims{"sub": float64(0), "name": "alice"},
			mapping: scenario,
			wantErr: true,
		},
		{
			name:    "boolean username",
			claims:  Claims{"sub": "ext-42", "name": false},
			mapping: scenario,
			wantErr: true,
		},
		{
			name:    "null id",
			claims:  Claims{"sub": nil, "name": "alice"},
			mapping: scenario,
			wantErr: true,
		},
		{
			name:    "array username",
			claims:  Claims{"sub": "ext-42", "name": []any{"a"}},
			mapping: scenario,
			wantErr: true,
		},
		{
			name:    "nil claims",
			claims:  nil,
			mapping: scenario,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := ValidatePayload(tt.claims, tt.mapping)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("expected ErrInvalidPayload, got %v", err)
				}
				if errors.Is(err, ErrVerification) {
					t.Errorf("invalid payload must be distinguishable from verification failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if fields == nil {
				t.Fatal("expected fields")
			}
		})
	}
}

func TestExtractIdentity(t *testing.T) {
	mapping := config.FieldMapping{ID: "sub", Username: "name", Email: "email", Picture: "avatar", Parent: "profile"}
	claims := Claims{"profile": map[string]any{
		"sub":    "ext-7",
		"name":   "  bob ",
		"email":  "bob@example.com",
		"avatar": float64(3),
	}}

	fields, err := ValidatePayload(claims, mapping)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	id := ExtractIdentity(fields, mapping)
	want := Identity{ExternalID: "ext-7", Username: "  bob ", Email: "bob@example.com"}
	if id != want {
		t.Errorf("ExtractIdentity() = %+v, want %+v", id, want)
	}
}

func TestExtractIdentityWithoutEmailMapping(t *testing.T) {
	mapping := config.FieldMapping{ID: "id", Username: "username"}
	id := ExtractIdentity(Fields{"id": "1", "username": "a", "email": "x@y"}, mapping)
	if id.Email != "" {
		t.Errorf("expected no email without a mapping, got %q", id.Email)
	}
}
