package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner_Variants(t *testing.T) {
	id := uuid.New()

	user := UserOwner(id)
	gotID, ok := user.UserID()
	assert.True(t, ok)
	assert.Equal(t, id, gotID)
	_, ok = user.SessionID()
	assert.False(t, ok)
	assert.False(t, user.IsGuest())
	assert.Equal(t, "user:"+id.String(), user.Key())

	guest := SessionOwner("abc")
	sid, ok := guest.SessionID()
	assert.True(t, ok)
	assert.Equal(t, "abc", sid)
	_, ok = guest.UserID()
	assert.False(t, ok)
	assert.True(t, guest.IsGuest())
	assert.Equal(t, "session:abc", guest.Key())

	assert.True(t, Owner{}.IsZero())
	assert.NotEqual(t, UserOwner(id), SessionOwner(id.String()))
}

func TestOwner_Validate(t *testing.T) {
	assert.NoError(t, UserOwner(uuid.New()).Validate())
	assert.NoError(t, SessionOwner("s-1").Validate())
	assert.ErrorIs(t, UserOwner(uuid.Nil).Validate(), ErrInvalidOwner)
	assert.ErrorIs(t, SessionOwner("").Validate(), ErrInvalidOwner)
	assert.ErrorIs(t, Owner{}.Validate(), ErrInvalidOwner)
}

func TestOwner_JSONRoundTrip(t *testing.T) {
	for _, owner := range []Owner{UserOwner(uuid.New()), SessionOwner("sess")} {
		data, err := json.Marshal(owner)
		require.NoError(t, err)

		var decoded Owner
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, owner, decoded)
	}

	var bad Owner
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"kind":"robot"}`), &bad), ErrInvalidOwner)
}
