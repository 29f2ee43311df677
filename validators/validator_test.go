package validators

import (
	"testing"

	"github.com/anonto42/writer/backend/internal/models"
	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_FieldErrors(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&models.RegisterRequest{
		Username:  "ab",
		Email:     "not-an-email",
		Password:  "secret1",
		Password2: "secret2",
	})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidArgument, appErr.Code)
	assert.Contains(t, appErr.Fields, "username")
	assert.Contains(t, appErr.Fields, "email")
	assert.Equal(t, "Passwords must match.", appErr.Fields["password2"])
	assert.NotContains(t, appErr.Fields, "password")
}

func TestValidate_OK(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Validate(&models.UpdatePreferencesRequest{
		MsgPreference:     models.MsgFollowers,
		ProfileVisibility: models.ProfilePrivate,
		FeedSorting:       models.SortPopular,
		AccentColor:       "teal",
	}))
}
