package breach

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Kind is the classification of a successful exchange with the incident API.
type Kind int

const (
	Miss Kind = iota
	Hit
)

func (k Kind) String() string {
	if k == Hit {
		return "hit"
	}
	return "miss"
}

// Outcome is a non-error classification. Body and Page are only set for hits.
type Outcome struct {
	Kind Kind
	Body json.RawMessage
	Page IncidentPage
}

// IncidentPage is the part of an incident listing the connector inspects.
type IncidentPage struct {
	TotalEntries *float64   `json:"total_entries"`
	Incidents    []Incident `json:"incidents"`
}

// Incident keeps severity_score raw because the provider sends it as a
// number on some endpoints and as a numeric string on others.
type Incident struct {
	SeverityScore json.RawMessage `json:"severity_score"`
}

// Score reports the incident's severity and whether one was present.
func (i Incident) Score() (float64, bool) {
	raw := bytes.TrimSpace(i.SeverityScore)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	s := string(raw)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MaxSeverity returns the highest defined severity score on the page.
func (p IncidentPage) MaxSeverity() (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, inc := range p.Incidents {
		v, ok := inc.Score()
		if !ok {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// knownStatuses are the codes the API is documented to return.
var knownStatuses = map[int]bool{
	http.StatusOK:                  true,
	http.StatusNotFound:            true,
	http.StatusBadRequest:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusMultipleChoices:     true,
	http.StatusInternalServerError: true,
}

// Classify maps a transport error, status code and body onto a hit, a miss
// or an *APIError. The checks run in a fixed order: transport failure,
// unknown status, 500 (the provider's rejected-token signal), the
// remaining known non-200 codes, then body inspection.
func Classify(err error, status int, body []byte, entityValue string) (Outcome, error) {
	if err != nil {
		return Outcome{}, &APIError{
			Kind: ErrTransport,
			Err:  err,
			Payload: newPayload("Error executing HTTP request", "", 0, CodeTransport, "Error executing HTTP request", map[string]any{
				"err":         err.Error(),
				"entityValue": entityValue,
			}),
		}
	}

	if !knownStatuses[status] {
		return Outcome{}, &APIError{
			Kind:       ErrUnexpectedStatus,
			StatusCode: status,
			Payload: newPayload("Unexpected HTTP Status Code", "", status, CodeUnexpectedStatus, "Unexpected HTTP Status Code", map[string]any{
				"body":        bodyMeta(body),
				"entityValue": entityValue,
			}),
		}
	}

	if status == http.StatusInternalServerError {
		return Outcome{}, &APIError{
			Kind:       ErrAuth,
			StatusCode: status,
			Payload: newPayload("Error with Token", "", status, CodeAuth,
				"ApiKey is incorrect, please contact Risk Based Security for further information.",
				map[string]any{
					"body":        bodyMeta(body),
					"entityValue": entityValue,
				}),
		}
	}

	trimmed := bytes.TrimSpace(body)
	if status != http.StatusOK || len(trimmed) == 0 {
		return Outcome{Kind: Miss}, nil
	}

	var generic any
	if err := json.Unmarshal(trimmed, &generic); err != nil {
		return Outcome{}, &APIError{
			Kind:       ErrDecode,
			StatusCode: status,
			Err:        err,
			Payload: newPayload("Response body is not valid JSON", "", status, CodeDecode, "Unreadable API response", map[string]any{
				"body":        bodyMeta(body),
				"entityValue": entityValue,
			}),
		}
	}
	if isEmpty(generic) {
		return Outcome{Kind: Miss}, nil
	}

	var page IncidentPage
	if obj, ok := generic.(map[string]any); ok {
		if _, defined := obj["total_entries"]; defined {
			// Inspected separately so a null total still counts as defined.
			if isZero(obj["total_entries"]) || isEmpty(obj["incidents"]) {
				return Outcome{Kind: Miss}, nil
			}
		}
		// Field-level decode failures leave the page partially filled; the
		// raw body is still returned to the caller.
		_ = json.Unmarshal(trimmed, &page)
	}

	return Outcome{Kind: Hit, Body: json.RawMessage(trimmed), Page: page}, nil
}

// isEmpty treats null, "", {}, [] and bare numbers or booleans as empty.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil, float64, bool:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

func isZero(v any) bool {
	f, ok := v.(float64)
	return ok && f == 0
}
