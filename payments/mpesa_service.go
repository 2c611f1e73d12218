package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
)

type StkPushRequest struct {
	PhoneNumber            string `json:"phoneNumber"`
	Amount                 string `json:"amount"`
	InvoiceNumber          string `json:"invoiceNumber"`
	SharedShortCode        bool   `json:"sharedShortCode"`
	OrgShortCode           string `json:"orgShortCode"`
	OrgPassKey             string `json:"orgPassKey"`
	CallbackURL            string `json:"callbackUrl"`
	TransactionDescription string `json:"transactionDescription"`
}

type StkPushResponse struct {
	Header struct {
		StatusCode        string `json:"statusCode"`
		StatusDescription string `json:"statusDescription"`
	} `json:"header"`
	Response struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		CustomerMessage     string `json:"CustomerMessage"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
	} `json:"response"`
}

var (
	ErrInvalidPhone = errors.New("invalid M-Pesa phone number format")
	nonNumericRegex = regexp.MustCompile(`[^0-9]`)
)

func SanitizeMpesaNumber(phone string) (string, error) {
	sanitized := nonNumericRegex.ReplaceAllString(phone, "")

	if (strings.HasPrefix(sanitized, "07") || strings.HasPrefix(sanitized, "01")) && len(sanitized) == 10 {
		return "254" + sanitized[1:], nil
	}
	if (strings.HasPrefix(sanitized, "7") || strings.HasPrefix(sanitized, "1")) && len(sanitized) == 9 {
		return "254" + sanitized, nil
	}
	if strings.HasPrefix(sanitized, "254") && len(sanitized) == 12 {
		return sanitized, nil
	}

	return "", ErrInvalidPhone
}

// MpesaClient raises STK push prompts through KCB Buni. The checkout request
// id is the intent id echoed back by the payment webhook.
type MpesaClient struct {
	BaseURL         string
	AccountNumber   string
	RouteCode       string
	TransactionDesc string
	CallbackURL     string
	Tokens          *KCBTokenSource
	HTTP            *http.Client
}

func (c *MpesaClient) CreateIntent(ctx context.Context, in IntentRequest) (*Intent, error) {
	if c.AccountNumber == "" {
		return nil, fmt.Errorf("KCB_ACCOUNT_NUMBER is not set")
	}
	sanitizedPhone, err := SanitizeMpesaNumber(in.PayerPhone)
	if err != nil {
		return nil, err
	}

	accessToken, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get KCB access token: %w", err)
	}

	payload := StkPushRequest{
		PhoneNumber:            sanitizedPhone,
		Amount:                 in.Amount.Ceil().StringFixed(0),
		InvoiceNumber:          fmt.Sprintf("%s-%s", c.AccountNumber, in.BookingRef),
		SharedShortCode:        true,
		CallbackURL:            c.CallbackURL,
		TransactionDescription: c.TransactionDesc,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal STK payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/stkpush", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create STK request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("routeCode", c.RouteCode)
	req.Header.Set("operation", "STKPush")
	req.Header.Set("messageId", fmt.Sprintf("%s_%d", in.BookingRef, time.Now().UnixNano()))
	req.Header.Set("Authorization", "Bearer "+accessToken)

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send STK request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read STK response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Log.Error("KCB API error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("KCB Buni API returned non-200 status: %d", resp.StatusCode)
	}

	var stkResponse StkPushResponse
	if err := json.Unmarshal(respBody, &stkResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal STK response: %w", err)
	}
	if stkResponse.Response.ResponseCode != "0" {
		return nil, fmt.Errorf("KCB STK Push failed: %s", stkResponse.Response.ResponseDescription)
	}

	logger.Log.Info("✅ STK Push initiated", "booking", in.BookingRef, "checkout_request_id", stkResponse.Response.CheckoutRequestID)
	return &Intent{
		IntentID:      stkResponse.Response.CheckoutRequestID,
		ClientSession: stkResponse.Response.CustomerMessage,
	}, nil
}
