package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRef_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want UserRef
	}{
		{"object", `{"_id":"u1","fullName":"Ada","email":"ada@example.com"}`, UserRef{ID: "u1", FullName: "Ada", Email: "ada@example.com"}},
		{"string id", `"u2"`, UserRef{ID: "u2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got UserRef
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserRef_nullField(t *testing.T) {
	var c Complaint
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"c1","assignedTo":null}`), &c))
	assert.Nil(t, c.AssignedTo)
}

func TestUserRef_DisplayName(t *testing.T) {
	var nilRef *UserRef
	assert.Equal(t, "—", nilRef.DisplayName())
	assert.Equal(t, "Ada", (&UserRef{ID: "u1", FullName: "Ada"}).DisplayName())
	assert.Equal(t, "a@b.c", (&UserRef{ID: "u1", Email: "a@b.c"}).DisplayName())
	assert.Equal(t, "u1", (&UserRef{ID: "u1"}).DisplayName())
}
