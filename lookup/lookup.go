package lookup

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"breach-lookup/breach"
	"breach-lookup/logging"
	"breach-lookup/metrics"
	"breach-lookup/vetting"
)

// Resolver looks up a single entity. *breach.Client implements it.
type Resolver interface {
	Lookup(ctx context.Context, entityType breach.EntityType, value, token string) (breach.Outcome, error)
}

// TokenSource hands out bearer tokens. *breach.TokenCache implements it.
type TokenSource interface {
	Token(ctx context.Context, creds breach.Credentials) (string, error)
}

// Registrar supplies WHOIS registration data for domain hits.
type Registrar interface {
	Registration(ctx context.Context, domain string) (*vetting.Registration, error)
}

// Service runs batches of entities against the incident API.
type Service struct {
	resolver    Resolver
	tokens      TokenSource
	blacklist   *Blacklist
	registrar   Registrar
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewService(resolver Resolver, tokens TokenSource, logger *zap.Logger, m *metrics.Metrics) *Service {
	logger = logging.OrNop(logger)
	return &Service{
		resolver:  resolver,
		tokens:    tokens,
		blacklist: NewBlacklist(logger),
		logger:    logger,
		metrics:   m,
	}
}

// WithConcurrency caps in-flight entity lookups per batch. Zero means one
// goroutine per entity.
func (s *Service) WithConcurrency(n int) *Service {
	s.concurrency = n
	return s
}

// WithRegistrar enables WHOIS enrichment of domain hits.
func (s *Service) WithRegistrar(r Registrar) *Service {
	s.registrar = r
	return s
}

// Lookup resolves a batch. A token failure or the first entity-level error
// fails the whole batch and no partial results are returned. Blacklisted
// entities produce no result at all; results keep input order.
func (s *Service) Lookup(ctx context.Context, entities []Entity, opts Options) ([]Result, error) {
	log := s.logger.With(zap.String("batch_id", uuid.NewString()))
	log.Debug("starting lookup", zap.Int("entities", len(entities)))

	s.blacklist.Configure(opts)

	token, err := s.tokens.Token(ctx, opts.Credentials())
	if err != nil {
		log.Error("get token errored", zap.Error(err))
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	slots := make([]*Result, len(entities))
	for i, e := range entities {
		if s.blacklist.IsBlacklisted(e) {
			s.metrics.ObserveEntity(e.Type.MetricLabel(), metrics.OutcomeSkipped)
			log.Debug("skipping blacklisted entity", zap.String("value", e.Value))
			continue
		}

		i, e := i, e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.lookupEntity(gctx, log, e, token)
			if err != nil {
				return err
			}
			slots[i] = &res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("lookup failed", zap.Error(err))
		return nil, err
	}

	results := make([]Result, 0, len(entities))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	log.Debug("lookup finished", zap.Int("results", len(results)))
	return results, nil
}

func (s *Service) lookupEntity(ctx context.Context, log *zap.Logger, e Entity, token string) (Result, error) {
	out, err := s.resolver.Lookup(ctx, e.Type, e.Value, token)
	if err != nil {
		s.metrics.ObserveEntity(e.Type.MetricLabel(), metrics.OutcomeError)
		return Result{}, err
	}

	if out.Kind == breach.Miss {
		s.metrics.ObserveEntity(e.Type.MetricLabel(), metrics.OutcomeMiss)
		return Result{Entity: e}, nil
	}

	details := Details{Body: out.Body}
	switch e.Type {
	case TypeDomain:
		if best, ok := out.Page.MaxSeverity(); ok {
			details.Severity = SeverityPrefix + strconv.FormatFloat(best, 'f', -1, 64)
		}
		if s.registrar != nil {
			reg, err := s.registrar.Registration(ctx, e.Value)
			if err != nil {
				log.Warn("whois enrichment failed", zap.String("domain", e.Value), zap.Error(err))
			} else {
				details.Registration = reg
			}
		}
	case TypeEmail:
		details.Email = out.Body
	}

	s.metrics.ObserveEntity(e.Type.MetricLabel(), metrics.OutcomeHit)
	log.Debug("entity hit", zap.String("value", e.Value), zap.String("severity", details.Severity))

	return Result{
		Entity: e,
		Data: &Data{
			Summary: []string{},
			Details: details,
		},
	}, nil
}
