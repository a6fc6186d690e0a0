package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThrough(t *testing.T) {
	orig := NewLockBusy("historico_sla")
	mapped := ToDomainError(orig)
	assert.Equal(t, "LOCK_BUSY", mapped.Code)
	assert.Equal(t, http.StatusConflict, mapped.HTTPStatus)
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	mapped := ToDomainError(fmt.Errorf("load config: %w", pgx.ErrNoRows))
	assert.Equal(t, "NOT_FOUND", mapped.Code)
	assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	mapped := ToDomainError(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
}

func TestStoreFailureUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreFailure("begin transaction", cause)

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "STORE_FAILURE", domainErr.Code)
	assert.True(t, errors.Is(err, cause))
}

func TestConfigurationMissingDetails(t *testing.T) {
	err := NewConfigurationMissing("critical")

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "CONFIGURATION_MISSING", domainErr.Code)
	assert.Equal(t, "critical", domainErr.Details["priority"])
}
