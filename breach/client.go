package breach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"breach-lookup/logging"
	"breach-lookup/metrics"
)

// DefaultBaseURL is the breach-intelligence provider.
const DefaultBaseURL = "https://cyberriskanalytics.com"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Client talks to the provider's token and incident endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger, m *metrics.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// FetchToken performs the OAuth2 client-credentials exchange. It never
// consults a cache; see TokenCache for that.
func (c *Client) FetchToken(ctx context.Context, creds Credentials) (string, error) {
	payload, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &APIError{
			Kind:    ErrTokenRequest,
			Err:     err,
			Payload: newPayload(err.Error(), "", 0, CodeTokenRequest, "Error requesting OAuth token", nil),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &APIError{
			Kind:    ErrTokenRequest,
			Err:     err,
			Payload: newPayload(err.Error(), "", resp.StatusCode, CodeTokenRequest, "Error reading OAuth token response", nil),
		}
	}

	c.logger.Debug("token endpoint responded", zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			Kind:       ErrTokenRequest,
			StatusCode: resp.StatusCode,
			Err:        errors.New("status code was not 200"),
			Payload: newPayload("status code was not 200", "", resp.StatusCode, CodeTokenRequest, "Error requesting OAuth token", map[string]any{
				"error": "status code was not 200",
				"body":  bodyMeta(body),
			}),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &APIError{
			Kind:       ErrTokenRequest,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode token response: %w", err),
			Payload:    newPayload("token response is not valid JSON", "", resp.StatusCode, CodeTokenRequest, "Error requesting OAuth token", map[string]any{"body": bodyMeta(body)}),
		}
	}

	return tr.AccessToken, nil
}

// Lookup resolves one entity against the incident API and classifies the response.
func (c *Client) Lookup(ctx context.Context, entityType EntityType, value, token string) (Outcome, error) {
	req, err := c.NewLookupRequest(ctx, entityType, value, token)
	if err != nil {
		return Outcome{}, err
	}

	c.logger.Debug("looking up entity",
		zap.String("type", string(entityType)),
		zap.String("value", value),
		zap.String("url", req.URL.String()),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveRequest(entityType.MetricLabel(), time.Since(start))
	if err != nil {
		return Classify(err, 0, nil, value)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Classify(err, resp.StatusCode, nil, value)
	}

	c.logger.Debug("incident API responded",
		zap.String("value", value),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	return Classify(nil, resp.StatusCode, body, value)
}
