package databox

import "time"

// KeyType is the privilege class of an API key.
type KeyType string

const (
	KeyAnon        KeyType = "anon"
	KeyServiceRole KeyType = "service_role"
)

// Permission names an action granted to a key.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
	PermAdmin  Permission = "admin"
)

// Permissions returns the permission set granted to keys of this type.
// Unknown types get no permissions.
func (t KeyType) Permissions() []Permission {
	switch t {
	case KeyAnon:
		return []Permission{PermRead}
	case KeyServiceRole:
		return []Permission{PermRead, PermWrite, PermDelete, PermAdmin}
	default:
		return nil
	}
}

func (t KeyType) Valid() bool {
	return t == KeyAnon || t == KeyServiceRole
}

// APIKey is an issued credential. Keys are never removed, only deactivated.
type APIKey struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Key         string       `json:"key"`
	Type        KeyType      `json:"type"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	LastUsed    *time.Time   `json:"lastUsed,omitempty"`
	IsActive    bool         `json:"isActive"`
}

// Has reports whether the key grants perm.
func (k APIKey) Has(perm Permission) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func (k APIKey) Clone() APIKey {
	out := k
	out.Permissions = cloneSlice(k.Permissions)
	if k.LastUsed != nil {
		t := *k.LastUsed
		out.LastUsed = &t
	}
	return out
}
