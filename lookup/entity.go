package lookup

import (
	"encoding/json"

	"breach-lookup/breach"
	"breach-lookup/vetting"
)

type EntityType = breach.EntityType

const (
	TypeDomain = breach.TypeDomain
	TypeEmail  = breach.TypeEmail
)

// Entity is one indicator submitted for enrichment.
type Entity struct {
	Type     EntityType `json:"type"`
	Value    string     `json:"value"`
	IsDomain bool       `json:"isDomain"`
}

func (e Entity) domain() bool {
	return e.IsDomain || e.Type == TypeDomain
}

// Options is the per-call configuration supplied with every batch.
type Options struct {
	ClientID             string `json:"clientId"`
	ClientSecret         string `json:"clientSecret"`
	Blacklist            string `json:"blacklist"`
	DomainBlacklistRegex string `json:"domainBlacklistRegex"`
}

func (o Options) Credentials() breach.Credentials {
	return breach.Credentials{ClientID: o.ClientID, ClientSecret: o.ClientSecret}
}

// WithDefaults fills empty fields from d.
func (o Options) WithDefaults(d Options) Options {
	if o.ClientID == "" {
		o.ClientID = d.ClientID
	}
	if o.ClientSecret == "" {
		o.ClientSecret = d.ClientSecret
	}
	if o.Blacklist == "" {
		o.Blacklist = d.Blacklist
	}
	if o.DomainBlacklistRegex == "" {
		o.DomainBlacklistRegex = d.DomainBlacklistRegex
	}
	return o
}

// Result is the outcome for one entity. A nil Data marks a miss.
type Result struct {
	Entity Entity `json:"entity"`
	Data   *Data  `json:"data"`
}

type Data struct {
	Summary []string `json:"summary"`
	Details Details  `json:"details"`
}

// Details is what the notification window renders. Email is the raw body for
// email lookups; the UI reads it as a map of address to breach metadata.
type Details struct {
	Body         json.RawMessage       `json:"body"`
	Email        json.RawMessage       `json:"email,omitempty"`
	Severity     string                `json:"severity,omitempty"`
	Registration *vetting.Registration `json:"registration,omitempty"`
}

// SeverityPrefix starts the severity line shown for domain hits.
const SeverityPrefix = "Highest Severity Breach Score: "
