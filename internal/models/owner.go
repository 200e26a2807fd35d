package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidOwner is returned when an Owner carries neither a user nor a session.
var ErrInvalidOwner = errors.New("invalid owner")

type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerSession OwnerKind = "session"
)

// Owner identifies who holds a cart or placed an order: exactly one of a
// registered user or an anonymous browser session.
type Owner struct {
	kind      OwnerKind
	userID    uuid.UUID
	sessionID string
}

func UserOwner(id uuid.UUID) Owner {
	return Owner{kind: OwnerUser, userID: id}
}

func SessionOwner(id string) Owner {
	return Owner{kind: OwnerSession, sessionID: id}
}

func (o Owner) Kind() OwnerKind { return o.kind }

func (o Owner) IsZero() bool { return o.kind == "" }

func (o Owner) IsGuest() bool { return o.kind == OwnerSession }

func (o Owner) UserID() (uuid.UUID, bool) {
	return o.userID, o.kind == OwnerUser
}

func (o Owner) SessionID() (string, bool) {
	return o.sessionID, o.kind == OwnerSession
}

// Key is a stable string form used for cache keys and request coalescing.
func (o Owner) Key() string {
	switch o.kind {
	case OwnerUser:
		return "user:" + o.userID.String()
	case OwnerSession:
		return "session:" + o.sessionID
	default:
		return ""
	}
}

func (o Owner) String() string { return o.Key() }

func (o Owner) Validate() error {
	switch o.kind {
	case OwnerUser:
		if o.userID == uuid.Nil {
			return fmt.Errorf("%w: empty user id", ErrInvalidOwner)
		}
	case OwnerSession:
		if o.sessionID == "" {
			return fmt.Errorf("%w: empty session id", ErrInvalidOwner)
		}
	default:
		return ErrInvalidOwner
	}
	return nil
}

type ownerJSON struct {
	Kind      OwnerKind  `json:"kind"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
}

func (o Owner) MarshalJSON() ([]byte, error) {
	out := ownerJSON{Kind: o.kind, SessionID: o.sessionID}
	if o.kind == OwnerUser {
		id := o.userID
		out.UserID = &id
	}
	return json.Marshal(out)
}

func (o *Owner) UnmarshalJSON(data []byte) error {
	var in ownerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case OwnerUser:
		if in.UserID == nil {
			return fmt.Errorf("%w: missing user id", ErrInvalidOwner)
		}
		*o = UserOwner(*in.UserID)
	case OwnerSession:
		*o = SessionOwner(in.SessionID)
	case "":
		*o = Owner{}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOwner, in.Kind)
	}
	return nil
}
