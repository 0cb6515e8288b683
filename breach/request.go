package breach

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// EntityType is the kind of indicator being looked up.
type EntityType string

const (
	TypeDomain EntityType = "domain"
	TypeEmail  EntityType = "email"
)

// MetricLabel bounds the label set: caller-supplied types the API does not
// support are all reported as "other".
func (t EntityType) MetricLabel() string {
	switch t {
	case TypeDomain, TypeEmail:
		return string(t)
	}
	return "other"
}

// PageSize is fixed; only the first page of incidents is ever requested.
const PageSize = 20

// LookupURL maps an entity onto the incident endpoint for its type.
// The value is lower-cased before it is placed in the query.
func (c *Client) LookupURL(entityType EntityType, value string) (string, error) {
	var path, param string
	switch entityType {
	case TypeDomain:
		path, param = "breaches_by_url", "url"
	case TypeEmail:
		path, param = "by_email", "emails"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEntity, entityType)
	}

	return fmt.Sprintf("%s/api/v1/incidents/%s?%s=%s&per_page=%d",
		c.baseURL, path, param, url.QueryEscape(strings.ToLower(value)), PageSize), nil
}

// NewLookupRequest builds the authenticated GET for one entity.
func (c *Client) NewLookupRequest(ctx context.Context, entityType EntityType, value, token string) (*http.Request, error) {
	u, err := c.LookupURL(entityType, value)
	if err != nil {
		return nil, &APIError{
			Kind: ErrUnsupportedEntity,
			Err:  err,
			Payload: newPayload(err.Error(), "", 0, CodeUnsupportedEntity, "Unsupported entity type", map[string]any{
				"entityType":  string(entityType),
				"entityValue": value,
			}),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
