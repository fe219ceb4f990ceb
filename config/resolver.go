package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/warp/incentive-engine/model"
)

// =============================================================================
// RESOLVER - load, bootstrap, validate, cache
// =============================================================================

// Resolver loads scoring documents from a ConfigStore. Documents are cached
// for the lifetime of the Resolver; changes in the store are not observed
// until Invalidate is called.
type Resolver struct {
	store    model.ConfigStore
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	leaders LeaderIdentities // non-empty fields override the stored document

	mu    sync.Mutex
	cache map[Domain]Document
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLeaderOverrides sets leader identities that take precedence over
// the Leaderboard_Schema document (typically from the environment).
func WithLeaderOverrides(l LeaderIdentities) Option {
	return func(r *Resolver) { r.leaders = l }
}

// WithClock replaces time.Now for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a resolver over store. A nil logger discards output.
func NewResolver(store model.ConfigStore, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Resolver{
		store:    store,
		logger:   logger.With("component", "config"),
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		cache:    make(map[Domain]Document),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the document for domain, bootstrapping defaults if it is absent.
func (r *Resolver) Load(ctx context.Context, domain Domain) (Document, error) {
	if r.store == nil {
		return nil, fmt.Errorf("%w: no configuration store", model.ErrConfigurationMissing)
	}
	d, ok := ParseDomain(string(domain))
	if !ok {
		return nil, fmt.Errorf("unknown config domain %q", domain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if doc, ok := r.cache[d]; ok {
		return doc, nil
	}

	raw, err := r.store.GetConfigDoc(ctx, string(d))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrConfigurationMissing, d, err)
	}

	var doc Document
	if raw == nil {
		doc = defaultFor(d, r.now())
		if err := r.persist(ctx, doc); err != nil {
			r.logger.Warn("bootstrap write failed, using defaults", "doc", d, "error", err)
		} else {
			r.logger.Info("bootstrapped default config", "doc", d)
		}
	} else {
		doc = emptyFor(d)
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, &model.ConfigValidationError{DocID: string(d), Fields: []string{err.Error()}}
		}
		if err := r.check(doc); err != nil {
			return nil, err
		}
	}

	r.cache[d] = doc
	return doc, nil
}

// LoadSIP returns the Leaderboard_SIP document.
func (r *Resolver) LoadSIP(ctx context.Context) (*SIPConfig, error) {
	doc, err := r.Load(ctx, DomainSIP)
	if err != nil {
		return nil, err
	}
	return doc.(*SIPConfig), nil
}

// LoadInsurance returns the Leaderboard_Insurance document.
func (r *Resolver) LoadInsurance(ctx context.Context) (*InsuranceConfig, error) {
	doc, err := r.Load(ctx, DomainInsurance)
	if err != nil {
		return nil, err
	}
	return doc.(*InsuranceConfig), nil
}

// LoadReferral returns the Leaderboard_Referral document.
func (r *Resolver) LoadReferral(ctx context.Context) (*ReferralConfig, error) {
	doc, err := r.Load(ctx, DomainReferral)
	if err != nil {
		return nil, err
	}
	return doc.(*ReferralConfig), nil
}

// LoadLeaderboard returns the Leaderboard_Schema document.
func (r *Resolver) LoadLeaderboard(ctx context.Context) (*LeaderboardConfig, error) {
	doc, err := r.Load(ctx, DomainLeaderboard)
	if err != nil {
		return nil, err
	}
	return doc.(*LeaderboardConfig), nil
}

// Save validates and stores doc, replacing the cached copy.
func (r *Resolver) Save(ctx context.Context, doc Document) error {
	if r.store == nil {
		return fmt.Errorf("%w: no configuration store", model.ErrConfigurationMissing)
	}
	m := doc.Meta()
	d, ok := ParseDomain(m.ID)
	if !ok {
		return fmt.Errorf("unknown config domain %q", m.ID)
	}
	m.ID = string(d)
	if err := r.check(doc); err != nil {
		return err
	}

	now := r.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.persist(ctx, doc); err != nil {
		return err
	}
	r.cache[d] = doc
	return nil
}

// DecodeJSON decodes raw into the document type for domain d. The id is
// forced to d's canonical id; validation happens on Save.
func DecodeJSON(domain Domain, raw []byte) (Document, error) {
	d, ok := ParseDomain(string(domain))
	if !ok {
		return nil, fmt.Errorf("unknown config domain %q", domain)
	}
	doc := emptyFor(d)
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, &model.ConfigValidationError{DocID: string(d), Fields: []string{err.Error()}}
	}
	doc.Meta().ID = string(d)
	return doc, nil
}

// Invalidate drops all cached documents.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[Domain]Document)
}

func (r *Resolver) persist(ctx context.Context, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Meta().ID, err)
	}
	return r.store.PutConfigDoc(ctx, doc.Meta().ID, raw)
}

// check runs struct validation and converts failures to ConfigValidationError.
func (r *Resolver) check(doc Document) error {
	err := r.validate.Struct(doc)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &model.ConfigValidationError{DocID: doc.Meta().ID, Fields: []string{err.Error()}}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return &model.ConfigValidationError{DocID: doc.Meta().ID, Fields: fields}
}
