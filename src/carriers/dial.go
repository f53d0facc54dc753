package carriers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/square-key-labs/voicecore-ai/src/logger"
)

// DialClient initiates outbound telephony calls through the provider's HTTP
// dial API. Call initiation is out-of-band: the provider rings the number
// and, on answer, connects its media stream to the websocket URL passed in
// the dial request.
type DialClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewDialClient creates a dial client for the provider API at baseURL.
func NewDialClient(baseURL, apiKey string, log *logger.Logger) *DialClient {
	if log == nil {
		log = logger.WithPrefix("dial")
	}
	return &DialClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// NormalizeCallerID reduces a provided number to the exact 7-digit caller ID
// the provider expects: non-digits stripped, last seven kept.
func NormalizeCallerID(number string) string {
	var digits []byte
	for i := 0; i < len(number); i++ {
		if number[i] >= '0' && number[i] <= '9' {
			digits = append(digits, number[i])
		}
	}
	if len(digits) > 7 {
		digits = digits[len(digits)-7:]
	}
	return string(digits)
}

// Dial asks the provider to place a call to toNumber and stream its media to
// websocketURL. The provider's parameter name is websocket_url. Returns the
// provider's call reference.
func (c *DialClient) Dial(ctx context.Context, toNumber, callerID, websocketURL string) (string, error) {
	form := url.Values{}
	form.Set("to", toNumber)
	form.Set("caller_id", NormalizeCallerID(callerID))
	form.Set("websocket_url", websocketURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("carriers: dial request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("carriers: dial: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("carriers: dial: provider returned %s", resp.Status)
	}

	var body struct {
		CallID string `json:"call_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("carriers: dial response: %w", err)
	}

	c.log.Info("dialed %s (caller %s), provider call %s", toNumber, NormalizeCallerID(callerID), body.CallID)
	return body.CallID, nil
}
