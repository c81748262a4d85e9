//go:build integration
// +build integration

// End-to-end tests against a running Kestrel server seeded with
// artifacts/customers.json (kestrelctl seed).
//
// Run with: KESTREL_TEST_URL=http://localhost:8080 go test -tags=integration ./internal/api/...
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func baseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("KESTREL_TEST_URL")
	if url == "" {
		url = "http://localhost:8080"
	}
	resp, err := http.Get(url + "/ready")
	if err != nil {
		t.Skipf("kestrel not reachable at %s: %v", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Skipf("kestrel at %s is not ready: status %d", url, resp.StatusCode)
	}
	return url
}

func postLookup(t *testing.T, url, name string) (*http.Response, []byte) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name})
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Post(url+"/lookups", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestIntegrationLookups(t *testing.T) {
	url := baseURL(t)

	t.Run("StrongApplicantApproved", func(t *testing.T) {
		resp, body := postLookup(t, url, "Rahul Sharma")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var lr domain.LookupResponse
		require.NoError(t, json.Unmarshal(body, &lr))
		assert.Equal(t, domain.OutcomeApproved, lr.Status)
		assert.Equal(t, []string{"High CIBIL Score", "Good Bank Balance", "No Existing Loans", "Stable Employment"}, lr.Reasons)
		assert.NotEmpty(t, lr.LookupID)

		get, err := http.Get(url + "/lookups/" + lr.LookupID)
		require.NoError(t, err)
		get.Body.Close()
		assert.Equal(t, http.StatusOK, get.StatusCode)
	})

	t.Run("WeakApplicantRejected", func(t *testing.T) {
		resp, body := postLookup(t, url, "Priya Nair")
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var lr domain.LookupResponse
		require.NoError(t, json.Unmarshal(body, &lr))
		assert.Equal(t, domain.OutcomeRejected, lr.Status)
		assert.Len(t, lr.Reasons, 5)
	})

	t.Run("UnseenCategory", func(t *testing.T) {
		resp, body := postLookup(t, url, "Arjun Mehta")
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))

		var e map[string]string
		require.NoError(t, json.Unmarshal(body, &e))
		assert.Equal(t, domain.KindUnknownCategory, e["kind"])
		assert.Equal(t, "Employment_Type", e["column"])
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		resp, _ := postLookup(t, url, "rahul sharma")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
