package vetting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const exampleWhois = `   Domain Name: EXAMPLE.COM
   Registry Domain ID: 2336799_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.iana.org
   Registrar URL: http://res-dom.iana.org
   Updated Date: 2024-08-14T07:01:34Z
   Creation Date: 1995-08-14T04:00:00Z
   Registry Expiry Date: 2025-08-13T04:00:00Z
   Registrar: RESERVED-Internet Assigned Numbers Authority
   Registrar IANA ID: 376
   Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
   Name Server: A.IANA-SERVERS.NET
   Name Server: B.IANA-SERVERS.NET
   DNSSEC: signedDelegation
>>> Last update of whois database: 2024-09-01T00:00:00Z <<<
`

func newTestRegistrar(t *testing.T, answers map[string]string) (*WhoisRegistrar, *[]string) {
	t.Helper()
	var asked []string
	w := &WhoisRegistrar{
		query: func(domain string) (string, error) {
			asked = append(asked, domain)
			if a, ok := answers[domain]; ok {
				return a, nil
			}
			return "No match for domain \"" + domain + "\".", nil
		},
		now:    func() time.Time { return time.Date(2025, 8, 14, 4, 0, 0, 0, time.UTC) },
		logger: zaptest.NewLogger(t),
	}
	return w, &asked
}

func TestRegistration(t *testing.T) {
	w, _ := newTestRegistrar(t, map[string]string{"example.com": exampleWhois})

	reg, err := w.Registration(context.Background(), "Example.com.")
	require.NoError(t, err)
	assert.Equal(t, "example.com", reg.Domain)
	assert.Equal(t, "14/08/1995", reg.CreatedOn)
	assert.Equal(t, "14/08/2024", reg.UpdatedOn)
	assert.Equal(t, "13/08/2025", reg.ExpiresOn)
	assert.Greater(t, reg.AgeDays, 10000)
}

func TestRegistrationFallsBackToParent(t *testing.T) {
	w, asked := newTestRegistrar(t, map[string]string{"example.com": exampleWhois})

	reg, err := w.Registration(context.Background(), "mail.eu.example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", reg.Domain)
	assert.Equal(t, []string{"mail.eu.example.com", "eu.example.com", "example.com"}, *asked)
}

func TestRegistrationStopsAtRegistrableDomain(t *testing.T) {
	coUK := strings.Replace(exampleWhois, "EXAMPLE.COM", "CO.UK", 1)
	w, asked := newTestRegistrar(t, map[string]string{"co.uk": coUK})

	_, err := w.Registration(context.Background(), "shop.example.co.uk")
	assert.ErrorIs(t, err, ErrNoRegistration)
	assert.Equal(t, []string{"shop.example.co.uk", "example.co.uk"}, *asked)
	assert.NotContains(t, *asked, "co.uk")
}

func TestRegistrationPublicSuffix(t *testing.T) {
	w, asked := newTestRegistrar(t, nil)
	_, err := w.Registration(context.Background(), "co.uk")
	assert.ErrorIs(t, err, ErrNoRegistration)
	assert.Empty(t, *asked)
}

func TestRegistrationNotFound(t *testing.T) {
	w, _ := newTestRegistrar(t, nil)
	_, err := w.Registration(context.Background(), "nowhere.test")
	assert.ErrorIs(t, err, ErrNoRegistration)
}

func TestRegistrationQueryError(t *testing.T) {
	boom := errors.New("connection reset")
	w := &WhoisRegistrar{
		query:  func(string) (string, error) { return "", boom },
		now:    time.Now,
		logger: zaptest.NewLogger(t),
	}
	_, err := w.Registration(context.Background(), "example.com")
	assert.ErrorIs(t, err, boom)
}

func TestRegistrationCancelled(t *testing.T) {
	w, asked := newTestRegistrar(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Registration(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *asked)
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), parseDate("2020-01-02"))
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), parseDate(" 02-Jan-2020 "))
	assert.True(t, parseDate("sometime").IsZero())
}
