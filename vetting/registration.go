package vetting

import (
	"context"
	"errors"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"breach-lookup/logging"
)

// ErrNoRegistration is returned when no WHOIS record could be parsed for the
// domain or any of its parents.
var ErrNoRegistration = errors.New("no whois registration found")

// Registration is the WHOIS summary attached to domain hits.
type Registration struct {
	Domain    string `json:"domain"`
	Registrar string `json:"registrar,omitempty"`
	CreatedOn string `json:"created_on,omitempty"`
	UpdatedOn string `json:"updated_on,omitempty"`
	ExpiresOn string `json:"expires_on,omitempty"`
	AgeDays   int    `json:"age_days"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// WhoisRegistrar queries WHOIS servers and parses the answer.
type WhoisRegistrar struct {
	query  func(domain string) (string, error)
	now    func() time.Time
	logger *zap.Logger
}

func NewWhoisRegistrar(timeout time.Duration, logger *zap.Logger) *WhoisRegistrar {
	client := whois.NewClient()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &WhoisRegistrar{
		query:  func(domain string) (string, error) { return client.Whois(domain) },
		now:    time.Now,
		logger: logging.OrNop(logger),
	}
}

// Registration looks up domain, walking up to the parent domain when a
// subdomain has no record of its own (e.sellwithemail.online -> sellwithemail.online).
// The walk stops at the registrable domain and never queries a public suffix.
func (w *WhoisRegistrar) Registration(ctx context.Context, domain string) (*Registration, error) {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	registrable, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		// domain is itself a public suffix
		return nil, ErrNoRegistration
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := w.query(domain)
		if err != nil {
			return nil, err
		}

		info, err := parser.Parse(raw)
		if err == nil && info.Domain != nil {
			return w.build(domain, info), nil
		}

		if domain == registrable {
			return nil, ErrNoRegistration
		}
		w.logger.Debug("no whois record, trying parent domain", zap.String("domain", domain))
		_, domain, _ = strings.Cut(domain, ".")
	}
}

func (w *WhoisRegistrar) build(domain string, info parser.WhoisInfo) *Registration {
	reg := &Registration{Domain: domain}
	if info.Registrar != nil {
		reg.Registrar = info.Registrar.Name
	}

	created := parseDate(info.Domain.CreatedDate)
	if !created.IsZero() {
		reg.CreatedOn = created.Format("02/01/2006")
		reg.AgeDays = int(w.now().Sub(created).Hours() / 24)
	}
	if updated := parseDate(info.Domain.UpdatedDate); !updated.IsZero() {
		reg.UpdatedOn = updated.Format("02/01/2006")
	}
	if expires := parseDate(info.Domain.ExpirationDate); !expires.IsZero() {
		reg.ExpiresOn = expires.Format("02/01/2006")
	}
	return reg
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
