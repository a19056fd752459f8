package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrocomice/agroaccess/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"denied", fmt.Errorf("%w: Roles.create", shared.ErrPermissionDenied), http.StatusForbidden, "Access Denied"},
		{"referenced", fmt.Errorf("profiles: delete: %w", shared.ErrReferenced), http.StatusConflict, "Referenced"},
		{"duplicate", shared.ErrDuplicate, http.StatusConflict, "Duplicate"},
		{"missing", shared.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"invalid", fmt.Errorf("%w: name is required", shared.ErrValidation), http.StatusBadRequest, "Validation Failed"},
		{"transport", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			require.Equal(t, tc.status, rec.Code)
			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.title, body.Title)
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

func TestRespondErrorHidesTransportDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password authentication failed for user agroaccess"))

	assert.NotContains(t, rec.Body.String(), "password authentication")
}
