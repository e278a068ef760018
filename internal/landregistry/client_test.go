// internal/landregistry/client_test.go
package landregistry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "krishi-sahayak/internal/common/errors"
)

func TestVerify_KnownSurveyNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "123/4A", r.URL.Query().Get("surveyNo"))
		assert.Equal(t, "Pune", r.URL.Query().Get("village"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"surveyNo":"123/4A","village":"Pune","ownerName":"Ram Kumar","areaAcres":2.5}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", 5*time.Second, nil)
	record, err := c.Verify(context.Background(), "123/4A", "Pune")
	require.NoError(t, err)
	assert.True(t, record.Verified)
	assert.Equal(t, "Ram Kumar", record.OwnerName)
	assert.Equal(t, 2.5, record.AreaAcres)

	updates := record.FieldUpdates()
	require.Len(t, updates, 2)
	assert.Equal(t, "acreage", updates[0].Field)
	assert.Equal(t, "2.5", updates[0].Value)
	assert.Equal(t, "farmerName", updates[1].Field)
	assert.Equal(t, "Ram Kumar", updates[1].Value)
}

func TestVerify_UnknownSurveyNumberIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", 5*time.Second, nil)
	record, err := c.Verify(context.Background(), "999/9Z", "Pune")
	require.NoError(t, err)
	assert.False(t, record.Verified)
	assert.Empty(t, record.FieldUpdates())
}

func TestVerify_ServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", 5*time.Second, nil)
	_, err := c.Verify(context.Background(), "123/4A", "Pune")
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeRegistryLookupFailed))
}

func TestVerify_UnreachableRegistry(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "secret-key", 500*time.Millisecond, nil)
	_, err := c.Verify(context.Background(), "123/4A", "Pune")
	assert.True(t, stderrors.Is(err, stderrors.ErrCodeRegistryLookupFailed))
}
