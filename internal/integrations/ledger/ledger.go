package ledger

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/assoclab/membership-billing/internal/config"
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Client posts payment receipts to the external bookkeeping service. All
// calls are best-effort: the caller logs failures and moves on, the plan
// mutation is never rolled back over a ledger error.
type Client struct {
	url   string
	token string
	http  *http.Client
	log   *logrus.Logger
}

// NewClient initializes a new ledger client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url:   cfg.LedgerURL,
		token: cfg.LedgerToken,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// buildReceiptRequest creates the XML mutation for a customer receipt
func (c *Client) buildReceiptRequest(customerRef string, amount decimal.Decimal, date time.Time, reference string) string {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	mutation := doc.CreateElement("AddMutation")
	mutation.CreateElement("SecurityCode").SetText(c.token)
	m := mutation.CreateElement("Mutation")
	m.CreateElement("Kind").SetText("CustomerReceipt")
	m.CreateElement("Date").SetText(date.Format("2006-01-02"))
	m.CreateElement("CustomerRef").SetText(customerRef)
	m.CreateElement("Amount").SetText(amount.StringFixed(2))
	m.CreateElement("Reference").SetText(reference)
	out, _ := doc.WriteToString()
	return out
}

// sendRequest posts the XML mutation to the bookkeeping service
func (c *Client) sendRequest(payload string) ([]byte, error) {
	req, err := http.NewRequest("POST", c.url, bytes.NewBuffer([]byte(payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	c.log.Debugf("Ledger XML response: %s", string(body))

	return body, nil
}

// parseReceiptResponse extracts the mutation number assigned by the ledger
func (c *Client) parseReceiptResponse(rawBody []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return "", fmt.Errorf("failed to parse XML: %v", err)
	}

	numberElement := doc.FindElement("//MutationNumber")
	if numberElement == nil {
		return "", fmt.Errorf("mutation number not found in XML")
	}

	return numberElement.Text(), nil
}

// PostReceipt records a received installment payment against the member's
// customer account and returns the ledger's mutation number.
func (c *Client) PostReceipt(customerRef string, amount decimal.Decimal, date time.Time, reference string) (string, error) {
	payload := c.buildReceiptRequest(customerRef, amount, date, reference)
	body, err := c.sendRequest(payload)
	if err != nil {
		return "", err
	}

	number, err := c.parseReceiptResponse(body)
	if err != nil {
		return "", err
	}

	c.log.Infof("Posted receipt %s for %s EUR (customer %s)", number, amount.StringFixed(2), customerRef)
	return number, nil
}
