package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"breach-lookup/breach"
	"breach-lookup/lookup"
	"breach-lookup/metrics"
)

func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["client_secret"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok"}`))
		case "/api/v1/incidents/breaches_by_url":
			if r.URL.Query().Get("url") == "broken.com" {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			_, _ = w.Write([]byte(`{"total_entries":2,"incidents":[{"severity_score":4},{"severity_score":9}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, defaults lookup.Options) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(metrics.Options{Registerer: reg})
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	client := breach.NewClient(newProvider(t).URL, nil, logger, m)
	svc := lookup.NewService(client, breach.NewTokenCache(client, nil, logger, m), logger, m)
	return New(svc, defaults, reg, logger).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLookupEndpoint(t *testing.T) {
	h := newTestServer(t, lookup.Options{})
	rec := do(t, h, http.MethodPost, "/lookup", `{
		"entities":[{"type":"domain","value":"example.com","isDomain":true},{"type":"email","value":"a@b.com"}],
		"options":{"clientId":"id","clientSecret":"secret","blacklist":"a@b.com"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "example.com", resp.Results[0].Entity.Value)
	require.NotNil(t, resp.Results[0].Data)
	assert.Equal(t, "Highest Severity Breach Score: 9", resp.Results[0].Data.Details.Severity)
}

func TestLookupEndpointUsesDefaults(t *testing.T) {
	h := newTestServer(t, lookup.Options{ClientID: "id", ClientSecret: "secret"})
	rec := do(t, h, http.MethodPost, "/lookup", `{"entities":[{"type":"email","value":"x@y.com"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"results":[{"entity":{"type":"email","value":"x@y.com","isDomain":false},"data":null}]}`, rec.Body.String())
}

func TestLookupEndpointMissingCredentials(t *testing.T) {
	h := newTestServer(t, lookup.Options{})
	rec := do(t, h, http.MethodPost, "/lookup", `{"entities":[{"type":"email","value":"x@y.com"}],"options":{"clientId":"id"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload breach.ErrorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "/options/clientSecret", payload.Errors[0].Source.Pointer)
}

func TestLookupEndpointTokenFailure(t *testing.T) {
	h := newTestServer(t, lookup.Options{})
	rec := do(t, h, http.MethodPost, "/lookup", `{"entities":[{"type":"email","value":"x@y.com"}],"options":{"clientId":"id","clientSecret":"wrong"}}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var payload breach.ErrorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, breach.CodeTokenRequest, payload.Errors[0].Code)
}

func TestLookupEndpointEntityFailure(t *testing.T) {
	h := newTestServer(t, lookup.Options{ClientID: "id", ClientSecret: "secret"})
	rec := do(t, h, http.MethodPost, "/lookup", `{"entities":[{"type":"domain","value":"broken.com"}]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var payload breach.ErrorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, breach.CodeUnexpectedStatus, payload.Errors[0].Code)
	assert.Equal(t, "418", payload.Errors[0].Status)
}

func TestLookupEndpointBadJSON(t *testing.T) {
	h := newTestServer(t, lookup.Options{})
	rec := do(t, h, http.MethodPost, "/lookup", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	h := newTestServer(t, lookup.Options{ClientID: "ignored"})
	rec := do(t, h, http.MethodPost, "/validate", `{"options":{"clientSecret":"s"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"errors":[{"key":"clientId","message":"You must provide a Client ID option."}]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/validate", `{"options":{"clientId":"i","clientSecret":"s"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"errors":[]}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, lookup.Options{ClientID: "id", ClientSecret: "secret"})
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	do(t, h, http.MethodPost, "/lookup", `{"entities":[{"type":"domain","value":"example.com"}]}`)
	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `breach_lookup_entities_total{outcome="hit",type="domain"} 1`)
	assert.Contains(t, rec.Body.String(), `breach_lookup_token_requests_total{result="fetched"} 1`)
}
