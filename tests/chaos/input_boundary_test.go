//go:build chaos

package chaos

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// longString generates a string of the given length
func longString(char string, length int) string {
	return strings.Repeat(char, length)
}

func TestReserve_LongSKUBoundary(t *testing.T) {
	cleanupStores(t)
	token := authToken(t, "user_001")

	testCases := []struct {
		name       string
		skuLength  int
		wantStatus int
	}{
		{"at_limit_50", 50, http.StatusConflict},   // valid shape, just never initialized
		{"over_limit_51", 51, http.StatusBadRequest},
		{"way_over_1000", 1000, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sku := longString("A", tc.skuLength)
			resp, err := postJSON("/v1/inventory/reserve", map[string]any{"sku": sku, "quantity": 1}, token)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestReserve_SKUInjectionAttempts(t *testing.T) {
	cleanupStores(t)
	token := authToken(t, "user_001")

	// The SKU character class rejects every metacharacter an injection needs;
	// nothing here should reach the stores.
	payloads := []string{
		"FLASH'; DROP TABLE orders;--",
		"FLASH\" OR \"1\"=\"1",
		"FLASH*",
		"inventory:*",
		"../../../etc/passwd",
		"FLASH\x00001",
	}

	for i, payload := range payloads {
		t.Run(fmt.Sprintf("payload_%d", i), func(t *testing.T) {
			resp, err := postJSON("/v1/inventory/reserve", map[string]any{"sku": payload, "quantity": 1}, token)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	// Tables are intact afterwards
	var one int
	require.NoError(t, testPool.QueryRow(t.Context(), "SELECT 1 FROM orders LIMIT 1 UNION SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestReserve_QuantityBoundaries(t *testing.T) {
	cleanupStores(t)
	token := authToken(t, "user_001")
	initializeSKU(t, token, "QTY-SKU", 1000)

	testCases := []struct {
		name       string
		quantity   any
		wantStatus int
	}{
		{"zero", 0, http.StatusBadRequest},
		{"negative", -1, http.StatusBadRequest},
		{"large_negative", -2147483648, http.StatusBadRequest},
		{"above_cap", 6, http.StatusBadRequest},
		{"huge", 2147483647, http.StatusBadRequest},
		{"float", 1.5, http.StatusBadRequest},
		{"string", "2", http.StatusBadRequest},
		{"at_cap", 5, http.StatusCreated},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := postJSON("/v1/inventory/reserve", map[string]any{"sku": "QTY-SKU", "quantity": tc.quantity}, token)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}

	// Only the single valid reserve touched the counter
	assert.Equal(t, float64(995), availableNow(t, token, "QTY-SKU"))
}

func TestReserve_MalformedJSON(t *testing.T) {
	token := authToken(t, "user_001")

	payloads := []string{
		`{not valid json}`,
		`{"sku": "FLASH-001", "quantity":}`,
		`[]`,
		`"just a string"`,
		``,
		`{"sku": "FLASH-001", "quantity": 1`,
	}

	for i, payload := range payloads {
		t.Run(fmt.Sprintf("payload_%d", i), func(t *testing.T) {
			resp, err := postRaw("/v1/inventory/reserve", "application/json", payload, token)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestReserve_WrongContentType(t *testing.T) {
	token := authToken(t, "user_001")

	resp, err := postRaw("/v1/inventory/reserve", "text/plain", `{"sku": "FLASH-001", "quantity": 1}`, token)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReserve_LargePayload(t *testing.T) {
	token := authToken(t, "user_001")

	// 2MB body against the 1MB limit
	huge := fmt.Sprintf(`{"sku": "FLASH-001", "quantity": 1, "padding": "%s"}`, longString("x", 2*1024*1024))
	resp, err := postRaw("/v1/inventory/reserve", "application/json", huge, token)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestInitialize_QuantityBoundaries(t *testing.T) {
	cleanupStores(t)
	token := authToken(t, "user_001")

	testCases := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"missing", "", http.StatusBadRequest},
		{"negative", "?quantity=-1", http.StatusBadRequest},
		{"not_a_number", "?quantity=abc", http.StatusBadRequest},
		{"float", "?quantity=1.5", http.StatusBadRequest},
		{"zero", "?quantity=0", http.StatusOK},
		{"large", "?quantity=1000000", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := postJSON("/v1/inventory/INIT-SKU/initialize"+tc.query, nil, token)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestConfirm_ReservationIDBoundaries(t *testing.T) {
	token := authToken(t, "user_001")

	testCases := []struct {
		name          string
		reservationID string
		wantStatus    int
	}{
		{"empty", "", http.StatusBadRequest},
		{"whitespace", "   ", http.StatusBadRequest},
		{"over_length", longString("r", 31), http.StatusBadRequest},
		{"unknown_but_valid_shape", "rsv_000000000000", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := postJSON("/v1/checkout/confirm", map[string]any{"reservation_id": tc.reservationID}, token)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}
