package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlantError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("database is locked")

	// When: wrapping with PlantError
	plantErr := New(ErrCodeStoreQuery, "count plants", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, plantErr)
	assert.Equal(t, originalErr, errors.Unwrap(plantErr))
	assert.True(t, errors.Is(plantErr, originalErr))
}

func TestPlantError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "store error",
			code:     ErrCodeStoreUnavailable,
			message:  "plants.db missing",
			expected: "[ERR_201_STORE_UNAVAILABLE] plants.db missing",
		},
		{
			name:     "index error",
			code:     ErrCodeMappingConflict,
			message:  "field flower mapped twice",
			expected: "[ERR_302_MAPPING_CONFLICT] field flower mapped twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestPlantError_Is_MatchesByCodeThroughWrapping(t *testing.T) {
	// Given: a not-found error wrapped with fmt.Errorf
	err := fmt.Errorf("remove: %w", NotFoundError("property flower"))

	// Then: errors.Is matches by code, not identity
	assert.True(t, HasCode(err, ErrCodeNotFound))
	assert.False(t, HasCode(err, ErrCodeInvalidValueType))
	assert.Equal(t, ErrCodeNotFound, GetCode(err))
}

func TestPlantError_WithDetail_AddsContext(t *testing.T) {
	// Given: an index error
	err := IndexError(ErrCodeWriteRejected, "add document", nil)

	// When: adding details
	err = err.WithDetail("doc_id", "12").WithDetail("locale", "nl")

	// Then: details are available
	assert.Equal(t, "12", err.Details["doc_id"])
	assert.Equal(t, "nl", err.Details["locale"])
}

func TestPlantError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStoreQuery, CategoryStore},
		{ErrCodeIndexLocked, CategoryIndex},
		{ErrCodeInvalidValueType, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"bogus", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, "x", nil).Category)
		})
	}
}

func TestIsFatal_StoreAndIndexErrorsAreFatal(t *testing.T) {
	assert.True(t, IsFatal(StoreError("page fetch", nil)))
	assert.True(t, IsFatal(IndexError(ErrCodeWriteRejected, "write", nil)))
	assert.True(t, IsFatal(fmt.Errorf("refresh: %w", StoreError("count", nil))))
	assert.False(t, IsFatal(InvalidTypeError("bogus")))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestIndexError_CoercesForeignCodes(t *testing.T) {
	// Given: a non-index code passed to IndexError
	err := IndexError(ErrCodeStoreQuery, "oops", nil)

	// Then: it is reported as index unavailable
	assert.Equal(t, ErrCodeIndexUnavailable, err.Code)
	assert.Equal(t, CategoryIndex, err.Category)
}

func TestInvalidTypeError_CarriesType(t *testing.T) {
	err := InvalidTypeError("bogus")

	assert.Equal(t, ErrCodeInvalidValueType, err.Code)
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, "bogus", err.Details["type"])
	assert.Contains(t, err.Error(), `"bogus"`)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
