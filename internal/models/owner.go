package models

import (
	"fmt"

	"github.com/google/uuid"
)

type OwnerKind string

const (
	OwnerKindUser    OwnerKind = "user"
	OwnerKindSession OwnerKind = "session"
)

// OwnerKey identifies whose cart a line belongs to. It is either an
// authenticated user or an anonymous session, never both. The zero value
// identifies nobody and is rejected by every store operation.
type OwnerKey struct {
	kind OwnerKind
	id   uuid.UUID
}

func UserOwner(id uuid.UUID) OwnerKey {
	return OwnerKey{kind: OwnerKindUser, id: id}
}

func SessionOwner(id uuid.UUID) OwnerKey {
	return OwnerKey{kind: OwnerKindSession, id: id}
}

// ParseOwner rebuilds a key from its stored columns.
func ParseOwner(kind string, id uuid.UUID) (OwnerKey, error) {
	switch OwnerKind(kind) {
	case OwnerKindUser:
		return UserOwner(id), nil
	case OwnerKindSession:
		return SessionOwner(id), nil
	default:
		return OwnerKey{}, fmt.Errorf("unknown owner kind %q", kind)
	}
}

func (o OwnerKey) Kind() OwnerKind { return o.kind }

func (o OwnerKey) ID() uuid.UUID { return o.id }

func (o OwnerKey) IsUser() bool { return o.kind == OwnerKindUser }

func (o OwnerKey) IsZero() bool {
	return o.kind == "" || o.id == uuid.Nil
}

func (o OwnerKey) String() string {
	if o.IsZero() {
		return "none"
	}

	return string(o.kind) + ":" + o.id.String()
}
