package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"usersapi/internal/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.ErrValidation, http.StatusBadRequest},
		{"identity mismatch", apperrors.ErrIdentityMismatch, http.StatusBadRequest},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("get user 7: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"duplicate", apperrors.ErrDuplicateKey, http.StatusConflict},
		{"persistence", apperrors.ErrPersistence, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, apperrors.StatusCode(tc.err))
		})
	}
}
