package ledger

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/assoclab/membership-billing/internal/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(&config.Config{LedgerURL: url, LedgerToken: "tok-1"}, logger)
}

func TestPostReceipt(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`<AddMutationResponse><MutationNumber>MUT-42</MutationNumber></AddMutationResponse>`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	number, err := client.PostReceipt("CUST-1", decimal.RequireFromString("30"),
		time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC), "PAY-001")
	require.NoError(t, err)

	assert.Equal(t, "MUT-42", number)
	assert.Contains(t, gotBody, "<CustomerRef>CUST-1</CustomerRef>")
	assert.Contains(t, gotBody, "<Amount>30.00</Amount>")
	assert.Contains(t, gotBody, "<Date>2025-01-02</Date>")
	assert.Contains(t, gotBody, "<SecurityCode>tok-1</SecurityCode>")
}

func TestPostReceiptServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.PostReceipt("CUST-1", decimal.RequireFromString("30"), time.Now(), "PAY-001")
	require.Error(t, err)
}

func TestPostReceiptMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<AddMutationResponse></AddMutationResponse>`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.PostReceipt("CUST-1", decimal.RequireFromString("30"), time.Now(), "PAY-001")
	require.Error(t, err)
}
