package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToHTTPStatus(t *testing.T) {
	req := require.New(t)

	req.Equal(http.StatusOK, MapToHTTPStatus(nil))
	req.Equal(http.StatusUnauthorized, MapToHTTPStatus(ErrInvalidToken))
	req.Equal(http.StatusForbidden, MapToHTTPStatus(ErrForbidden))
	req.Equal(http.StatusBadRequest, MapToHTTPStatus(fmt.Errorf("%w: dueAt", ErrInvalidInput)))
	req.Equal(http.StatusBadRequest, MapToHTTPStatus(ErrUnknownEvent))
	req.Equal(http.StatusServiceUnavailable, MapToHTTPStatus(ErrStoreConflict))
	req.Equal(http.StatusInternalServerError, MapToHTTPStatus(fmt.Errorf("badger closed")))
}
