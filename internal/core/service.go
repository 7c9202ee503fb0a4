package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/internal/logging"
	"inventorycore/pkg/domain"
)

// ChangeFeed receives every committed record. Publish failures are logged
// and never undo the commit.
type ChangeFeed interface {
	Publish(ctx context.Context, e Entity) error
}

// ClockFunc returns the current time.
type ClockFunc func() time.Time

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock   ClockFunc
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	engine  *RulesEngine
	feed    ChangeFeed
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   time.Now,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
	}
}

// WithClock overrides the clock used to time operations.
func WithClock(clock ClockFunc) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the recorder observing every operation.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer wrapping every operation.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRulesEngine replaces the default validation rules.
func WithRulesEngine(engine *RulesEngine) ServiceOption {
	return func(o *serviceOptions) {
		o.engine = engine
	}
}

// WithChangeFeed publishes committed records to feed.
func WithChangeFeed(feed ChangeFeed) ServiceOption {
	return func(o *serviceOptions) {
		o.feed = feed
	}
}

// Service saves and deletes records through the normalization and
// validation stages and reads them back through the store.
type Service struct {
	store      DataStore
	config     *ConfigProvider
	resolver   *Resolver
	normalizer *Normalizer
	validator  *Validator
	opts       serviceOptions
	logger     *zap.Logger
}

// NewService constructs a service backed by store.
func NewService(store DataStore, opts ...ServiceOption) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	config := NewConfigProvider(store)
	resolver := NewResolver(store)
	return &Service{
		store:      store,
		config:     config,
		resolver:   resolver,
		normalizer: NewNormalizer(config, resolver, options.logger),
		validator:  NewValidator(config, store, resolver, options.engine),
		opts:       options,
		logger:     logging.Module(options.logger, "data/service"),
	}
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage adapter.
func (s *Service) Store() DataStore { return s.store }

// Config returns the configuration provider.
func (s *Service) Config() *ConfigProvider { return s.config }

// Resolver returns the relation resolver.
func (s *Service) Resolver() *Resolver { return s.resolver }

// Validator returns the validation stage.
func (s *Service) Validator() *Validator { return s.validator }

// Save normalizes and validates e, then commits it. Blocking issues are
// returned as a *ValidationError; stale revisions as a *ConflictError.
// The configuration is created with its defaults on first use. Config
// records are routed through UpdateConfig so that the UUID stays fixed and
// a stale revision still conflicts. Records flagged deleted are rejected;
// Delete is the only way to remove one.
func (s *Service) Save(ctx context.Context, e Entity) (saved Entity, err error) {
	op := "save_" + string(e.EntityType())
	ctx, done := s.observe(ctx, op)
	defer func() { done(err) }()

	if meta := e.Metadata(); meta.Deleted {
		return nil, &ValidationError{Entity: e.EntityType(), ID: meta.ID, Issues: []Issue{
			domain.NewIssue("", "Records are removed with Delete, not Save."),
		}}
	}
	if cfg, ok := e.(Config); ok {
		updated, err := s.UpdateConfig(ctx, patchFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	if _, err := s.config.EnsureSaved(ctx); err != nil {
		return nil, err
	}
	normalized, err := s.normalizer.BeforeSave(ctx, e)
	if err != nil {
		return nil, err
	}
	issues, err := s.validator.Validate(ctx, normalized)
	if err != nil {
		return nil, err
	}
	meta := normalized.Metadata()
	if len(issues) > 0 {
		return nil, &ValidationError{Entity: normalized.EntityType(), ID: meta.ID, Issues: issues}
	}
	saved, err = s.store.SaveDatum(ctx, normalized)
	if err != nil {
		if domain.IsConflict(err) {
			return nil, err
		}
		return nil, asStorageError(op, err)
	}
	s.publish(ctx, saved)
	return saved, nil
}

// Validate runs normalization and validation without committing and
// returns the normalized record alongside its issues.
func (s *Service) Validate(ctx context.Context, e Entity) (normalized Entity, issues []Issue, err error) {
	ctx, done := s.observe(ctx, "validate_"+string(e.EntityType()))
	defer func() { done(err) }()

	if _, err := s.config.EnsureSaved(ctx); err != nil {
		return nil, nil, err
	}
	normalized, err = s.normalizer.BeforeSave(ctx, e)
	if err != nil {
		return nil, nil, err
	}
	issues, err = s.validator.Validate(ctx, normalized)
	if err != nil {
		return nil, nil, err
	}
	return normalized, issues, nil
}

// Delete soft-deletes the record of type t with the given id.
func (s *Service) Delete(ctx context.Context, t EntityType, id string) (deleted Entity, err error) {
	op := "delete_" + string(t)
	ctx, done := s.observe(ctx, op)
	defer func() { done(err) }()

	if _, err := s.config.EnsureSaved(ctx); err != nil {
		return nil, err
	}
	original, err := s.store.GetDatum(ctx, t, id)
	if err != nil {
		return nil, asStorageError(op, err)
	}
	if original == nil {
		return nil, &NotFoundError{Entity: t, ID: id}
	}
	issues, err := s.validator.ValidateDelete(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Entity: t, ID: id, Issues: issues}
	}
	meta := original.Metadata()
	meta.Deleted = true
	deleted, err = s.store.SaveDatum(ctx, original.WithMetadata(meta))
	if err != nil {
		if domain.IsConflict(err) {
			return nil, err
		}
		return nil, asStorageError(op, err)
	}
	s.publish(ctx, deleted)
	return deleted, nil
}

// Get returns the live record or a *NotFoundError.
func (s *Service) Get(ctx context.Context, t EntityType, id string) (e Entity, err error) {
	op := "get_" + string(t)
	ctx, done := s.observe(ctx, op)
	defer func() { done(err) }()

	e, err = s.store.GetDatum(ctx, t, id)
	if err != nil {
		return nil, asStorageError(op, err)
	}
	if e == nil {
		return nil, &NotFoundError{Entity: t, ID: id}
	}
	return e, nil
}

// List returns the live records of type t matching cond.
func (s *Service) List(ctx context.Context, t EntityType, cond Conditions, opts QueryOptions) (out []Entity, err error) {
	op := "list_" + string(t)
	ctx, done := s.observe(ctx, op)
	defer func() { done(err) }()

	out, err = s.store.GetData(ctx, t, cond, opts)
	if err != nil {
		return nil, asStorageError(op, err)
	}
	return out, nil
}

// Count returns the number of live records of type t matching cond.
func (s *Service) Count(ctx context.Context, t EntityType, cond Conditions) (n int, err error) {
	op := "count_" + string(t)
	ctx, done := s.observe(ctx, op)
	defer func() { done(err) }()

	n, err = s.store.GetDataCount(ctx, t, cond)
	if err != nil {
		return 0, asStorageError(op, err)
	}
	return n, nil
}

// GetRelated resolves relation from e.
func (s *Service) GetRelated(ctx context.Context, e Entity, relation Relation, opts QueryOptions) (related Related, err error) {
	ctx, done := s.observe(ctx, "related_"+string(relation))
	defer func() { done(err) }()
	return s.resolver.GetRelated(ctx, e, relation, opts)
}

// UpdateConfig applies patch to the configuration and publishes the result.
func (s *Service) UpdateConfig(ctx context.Context, patch ConfigPatch) (cfg Config, err error) {
	ctx, done := s.observe(ctx, "update_config")
	defer func() { done(err) }()

	cfg, err = s.config.UpdateConfig(ctx, patch)
	if err != nil {
		return Config{}, err
	}
	s.publish(ctx, cfg)
	return cfg, nil
}

func (s *Service) observe(ctx context.Context, op string) (context.Context, func(error)) {
	started := s.opts.clock()
	ctx, span := s.opts.tracer.Start(ctx, op)
	return ctx, func(err error) {
		elapsed := s.opts.clock().Sub(started)
		span.End(err)
		s.opts.metrics.Observe(ctx, op, err == nil, elapsed)
		switch {
		case err == nil:
			s.logger.Debug("operation completed", zap.String("operation", op), zap.Duration("duration", elapsed))
		case isRejection(err):
			s.logger.Info("operation rejected", zap.String("operation", op), zap.Error(err))
		default:
			s.logger.Error("operation failed", zap.String("operation", op), zap.Error(err))
		}
	}
}

func (s *Service) publish(ctx context.Context, e Entity) {
	if s.opts.feed == nil {
		return
	}
	if err := s.opts.feed.Publish(ctx, e); err != nil {
		meta := e.Metadata()
		s.logger.Warn("change feed publish failed",
			zap.String("type", string(e.EntityType())),
			zap.String("id", meta.ID),
			zap.String("rev", meta.Rev),
			zap.Error(err))
	}
}

func isRejection(err error) bool {
	var (
		validation *ValidationError
		notFound   *NotFoundError
	)
	return errors.As(err, &validation) || errors.As(err, &notFound) || domain.IsConflict(err)
}

func patchFromConfig(cfg Config) ConfigPatch {
	patch := ConfigPatch{
		RFIDTagCompanyPrefix:                  &cfg.RFIDTagCompanyPrefix,
		RFIDTagIndividualAssetReferencePrefix: &cfg.RFIDTagIndividualAssetReferencePrefix,
		RFIDTagAccessPassword:                 &cfg.RFIDTagAccessPassword,
		DefaultUseMixedRFIDTagAccessPassword:  &cfg.DefaultUseMixedRFIDTagAccessPassword,
		Rev:                                   cfg.Rev,
	}
	if cfg.RFIDTagAccessPasswordEncoding != "" {
		patch.RFIDTagAccessPasswordEncoding = &cfg.RFIDTagAccessPasswordEncoding
	}
	return patch
}
