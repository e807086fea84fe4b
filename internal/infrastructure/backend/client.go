package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pillpath-finance/internal/domain/ledger"
	"pillpath-finance/pkg/errors"
)

// Config holds the configuration for the core platform API
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// TokenSource supplies the admin bearer token attached to every request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Client is the HTTP client for the PillPath core platform admin API
type Client struct {
	config     *Config
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a new platform API client
func NewClient(config *Config, tokens TokenSource) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Window selects the billing period for list requests
type Window struct {
	Month int // 1-12, 0 means all
	Year  int // 0 means all
}

// monthYear renders the window as the calendar-month billing key, or zero
// time when the window is open.
func (w Window) monthYear() (time.Time, bool) {
	if w.Month < 1 || w.Month > 12 || w.Year < 1 {
		return time.Time{}, false
	}
	return time.Date(w.Year, time.Month(w.Month), 1, 0, 0, 0, 0, time.UTC), true
}

// ListOrderPaymentsParams filters the order-payment listing
type ListOrderPaymentsParams struct {
	PharmacyID        string
	Window            Window
	SettlementChannel ledger.SettlementChannel
	Query             string
	Page              int
	Size              int
}

// ListSettlementsParams filters the commission and payout listings
type ListSettlementsParams struct {
	PharmacyID string
	Window     Window
	Status     ledger.PaymentStatus
	Page       int
	Size       int
}

// ReceiptUpload is the stored location of an uploaded payout receipt
type ReceiptUpload struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// UpdatePayoutRequest marks a payout paid with its receipt attached
type UpdatePayoutRequest struct {
	Status          ledger.PaymentStatus `json:"status"`
	ReceiptURL      string               `json:"receiptUrl"`
	ReceiptFileName string               `json:"receiptFileName"`
	ReceiptFileType string               `json:"receiptFileType"`
	PaidAt          string               `json:"paidAt"`
}

type orderPaymentList struct {
	Items []ledger.OrderPayment `json:"items"`
	Total int                   `json:"total"`
}

type commissionList struct {
	Items []ledger.Commission `json:"items"`
	Total int                 `json:"total"`
}

type payoutList struct {
	Items []ledger.Payout `json:"items"`
	Total int             `json:"total"`
}

// ListOrderPayments fetches order payments for the window.
// The order-payment endpoint takes the month as a plain number, unlike the
// commission and payout endpoints.
func (c *Client) ListOrderPayments(ctx context.Context, params ListOrderPaymentsParams) ([]ledger.OrderPayment, int, error) {
	query := url.Values{}
	if params.PharmacyID != "" {
		query.Set("pharmacyId", params.PharmacyID)
	}
	if _, ok := params.Window.monthYear(); ok {
		query.Set("month", strconv.Itoa(params.Window.Month))
		query.Set("year", strconv.Itoa(params.Window.Year))
	}
	if params.SettlementChannel != "" {
		query.Set("settlementChannel", string(params.SettlementChannel))
	}
	if params.Query != "" {
		query.Set("q", params.Query)
	}
	setPaging(query, params.Page, params.Size)

	var result orderPaymentList
	if err := c.doJSON(ctx, http.MethodGet, "/admin/order-payments?"+query.Encode(), nil, &result); err != nil {
		return nil, 0, err
	}
	return result.Items, result.Total, nil
}

// ListCommissions fetches commission records for the window
func (c *Client) ListCommissions(ctx context.Context, params ListSettlementsParams) ([]ledger.Commission, int, error) {
	var result commissionList
	if err := c.doJSON(ctx, http.MethodGet, "/admin/commissions?"+settlementQuery(params).Encode(), nil, &result); err != nil {
		return nil, 0, err
	}
	return result.Items, result.Total, nil
}

// ListPayouts fetches payout records for the window
func (c *Client) ListPayouts(ctx context.Context, params ListSettlementsParams) ([]ledger.Payout, int, error) {
	var result payoutList
	if err := c.doJSON(ctx, http.MethodGet, "/admin/payouts?"+settlementQuery(params).Encode(), nil, &result); err != nil {
		return nil, 0, err
	}
	return result.Items, result.Total, nil
}

// UpdateCommissionStatus toggles a commission between PAID and UNPAID.
// Unlike payouts, commissions may be corrected back and forth by an admin.
func (c *Client) UpdateCommissionStatus(ctx context.Context, commissionID string, status ledger.PaymentStatus) (*ledger.Commission, error) {
	if commissionID == "" {
		return nil, errors.NewValidationError("commission id is required")
	}

	body := map[string]string{"status": string(status)}
	var updated ledger.Commission
	if err := c.doJSON(ctx, http.MethodPatch, "/admin/commissions/"+url.PathEscape(commissionID), body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// UploadPayoutReceipt uploads a receipt file and returns its stored location
func (c *Client) UploadPayoutReceipt(ctx context.Context, fileName, fileType string, file io.Reader) (*ReceiptUpload, error) {
	if file == nil {
		return nil, errors.NewValidationError("receipt file is required")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to build multipart body: %v", err))
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read receipt file: %v", err))
	}
	if fileType != "" {
		if err := writer.WriteField("fileType", fileType); err != nil {
			return nil, errors.NewInternalError(fmt.Sprintf("failed to build multipart body: %v", err))
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to finish multipart body: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/admin/uploads/payout-receipts", &buf)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var upload ReceiptUpload
	if err := c.send(req, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

// UpdatePayout marks a payout paid with the receipt URL attached
func (c *Client) UpdatePayout(ctx context.Context, payoutID string, update UpdatePayoutRequest) (*ledger.Payout, error) {
	if payoutID == "" {
		return nil, errors.NewValidationError("payout id is required")
	}

	var updated ledger.Payout
	if err := c.doJSON(ctx, http.MethodPatch, "/admin/payouts/"+url.PathEscape(payoutID), update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// settlementQuery builds the shared query string of the commission and payout
// endpoints, which take the month as MM/YYYY.
func settlementQuery(params ListSettlementsParams) url.Values {
	query := url.Values{}
	if params.PharmacyID != "" {
		query.Set("pharmacyId", params.PharmacyID)
	}
	if monthYear, ok := params.Window.monthYear(); ok {
		query.Set("month", ledger.FormatMonth(monthYear))
		query.Set("year", strconv.Itoa(params.Window.Year))
	}
	if params.Status != "" {
		query.Set("status", string(params.Status))
	}
	setPaging(query, params.Page, params.Size)
	return query
}

func setPaging(query url.Values, page, size int) {
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}
}

// doJSON sends a JSON request and decodes the response into out
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// send attaches the bearer token, executes the request, and maps failures to
// the error taxonomy: transport problems (timeouts included) become
// NETWORK_FAILURE, 401/403 become AUTH_FAILURE, any other 4xx/5xx becomes
// SERVER_REJECTION carrying the backend's own message.
func (c *Client) send(req *http.Request, out interface{}) error {
	token, err := c.tokens.Token(req.Context())
	if err != nil {
		return errors.NewAuthError("no admin session token available")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewNetworkError(fmt.Sprintf("request to platform API failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError(fmt.Sprintf("failed to read platform API response: %v", err))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.NewAuthError(extractMessage(respBody, "admin session rejected"))
	}
	if resp.StatusCode >= 400 {
		return errors.NewServerRejectionError(extractMessage(respBody, resp.Status), resp.StatusCode)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewNetworkError(fmt.Sprintf("failed to unmarshal platform API response: %v", err))
	}
	return nil
}

// extractMessage pulls a human-readable message out of an error body,
// falling back to the raw body and finally to fallback.
func extractMessage(body []byte, fallback string) string {
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}
	if len(body) > 0 && len(body) <= 512 {
		return string(body)
	}
	return fallback
}
