package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"inventorycore/internal/epc"
	"inventorycore/pkg/domain"
)

// Defaults applied to a configuration that has never been saved.
const (
	DefaultCompanyPrefix    = "0000000"
	DefaultIARPrefix        = "100"
	DefaultAccessPassword   = "00000000"
	DefaultPasswordEncoding = "82"
	accessPasswordHexDigits = 8
)

// ConfigOptions tune GetConfig.
type ConfigOptions struct {
	// EnsureSaved rejects the transient default with domain.ErrConfigNotSaved.
	EnsureSaved bool
}

// ConfigPatch lists configuration fields to change. Nil fields are kept.
// The UUID is minted once and cannot be patched.
type ConfigPatch struct {
	RFIDTagCompanyPrefix                  *string `json:"rfid_tag_company_prefix,omitempty"`
	RFIDTagIndividualAssetReferencePrefix *string `json:"rfid_tag_individual_asset_reference_prefix,omitempty"`
	RFIDTagAccessPassword                 *string `json:"rfid_tag_access_password,omitempty"`
	DefaultUseMixedRFIDTagAccessPassword  *bool   `json:"default_use_mixed_rfid_tag_access_password,omitempty"`
	RFIDTagAccessPasswordEncoding         *string `json:"rfid_tag_access_password_encoding,omitempty"`

	// Rev, when set, must equal the stored revision or the update fails
	// with a *domain.ConflictError.
	Rev string `json:"-"`
}

// ConfigProvider reads and writes the configuration singleton of one database.
// An unsaved default is minted once per provider so that repeated reads agree
// on its UUID until it is persisted.
type ConfigProvider struct {
	store   DataStore
	newUUID func() string

	mu       sync.Mutex
	fallback *Config
}

// NewConfigProvider constructs a provider over store.
func NewConfigProvider(store DataStore) *ConfigProvider {
	return &ConfigProvider{store: store, newUUID: uuid.NewString}
}

// LoadConfig returns the stored configuration and true, or the transient
// default and false when none has been saved yet.
func (p *ConfigProvider) LoadConfig(ctx context.Context) (Config, bool, error) {
	stored, err := p.store.GetDatum(ctx, EntityConfig, domain.ConfigID)
	if err != nil {
		return Config{}, false, asStorageError("get config", err)
	}
	if stored != nil {
		cfg, ok := stored.(Config)
		if !ok {
			return Config{}, false, &StorageError{Op: "get config", Err: fmt.Errorf("unexpected %T", stored)}
		}
		if cfg.IsValid() {
			return cfg, true, nil
		}
		// A quarantined config is replaced on the next update.
		fallback := p.defaultConfig()
		fallback.Rev = cfg.Rev
		return fallback, false, nil
	}
	return p.defaultConfig(), false, nil
}

// GetConfig returns the configuration, falling back to the unsaved default
// unless opts.EnsureSaved is set.
func (p *ConfigProvider) GetConfig(ctx context.Context, opts ConfigOptions) (Config, error) {
	cfg, saved, err := p.LoadConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	if !saved && opts.EnsureSaved {
		return Config{}, domain.ErrConfigNotSaved
	}
	return cfg, nil
}

// EnsureSaved persists the default configuration when none exists yet and
// returns the stored configuration.
func (p *ConfigProvider) EnsureSaved(ctx context.Context) (Config, error) {
	cfg, saved, err := p.LoadConfig(ctx)
	if err != nil || saved {
		return cfg, err
	}
	return p.UpdateConfig(ctx, ConfigPatch{})
}

// UpdateConfig merges patch into the current configuration and saves it.
// Invalid values are rejected with a *domain.ValidationError.
func (p *ConfigProvider) UpdateConfig(ctx context.Context, patch ConfigPatch) (Config, error) {
	cfg, _, err := p.LoadConfig(ctx)
	if err != nil {
		return Config{}, err
	}
	if patch.Rev != "" && patch.Rev != cfg.Rev {
		return Config{}, &ConflictError{Entity: EntityConfig, ID: domain.ConfigID, Rev: patch.Rev, CurrentRev: cfg.Rev}
	}
	applyConfigPatch(&cfg, patch)
	if issues := ValidateConfig(cfg); len(issues) > 0 {
		return Config{}, &ValidationError{Entity: EntityConfig, ID: domain.ConfigID, Issues: issues}
	}
	saved, err := p.store.SaveDatum(ctx, cfg)
	if err != nil {
		if domain.IsConflict(err) {
			return Config{}, err
		}
		return Config{}, asStorageError("save config", err)
	}
	p.mu.Lock()
	p.fallback = nil
	p.mu.Unlock()
	return saved.(Config), nil
}

// ValidateConfig checks the tag encoding parameters of cfg.
func ValidateConfig(cfg Config) []Issue {
	var issues []Issue
	var encErr *epc.EncodingError
	if err := epc.ValidateCompanyPrefix(cfg.RFIDTagCompanyPrefix); errors.As(err, &encErr) {
		issues = append(issues, domain.NewIssue("rfid_tag_company_prefix", encErr.Message))
	}
	if err := epc.ValidateIARPrefix(cfg.RFIDTagIndividualAssetReferencePrefix); errors.As(err, &encErr) {
		issues = append(issues, domain.NewIssue("rfid_tag_individual_asset_reference_prefix", encErr.Message))
	}
	if len(issues) == 0 && epc.CollectionReferenceDigits(cfg.RFIDTagCompanyPrefix, cfg.RFIDTagIndividualAssetReferencePrefix) == 0 {
		issues = append(issues, domain.NewIssue("rfid_tag_individual_asset_reference_prefix",
			"Company prefix and individual asset reference prefix leave no room for reference numbers"))
	}
	if !isHex(cfg.RFIDTagAccessPassword, accessPasswordHexDigits) {
		issues = append(issues, domain.NewIssue("rfid_tag_access_password",
			fmt.Sprintf("Should be %d hexadecimal digits", accessPasswordHexDigits)))
	}
	return issues
}

func (p *ConfigProvider) defaultConfig() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fallback == nil {
		cfg := Config{
			UUID:                                  p.newUUID(),
			RFIDTagCompanyPrefix:                  DefaultCompanyPrefix,
			RFIDTagIndividualAssetReferencePrefix: DefaultIARPrefix,
			RFIDTagAccessPassword:                 DefaultAccessPassword,
			RFIDTagAccessPasswordEncoding:         DefaultPasswordEncoding,
		}
		cfg.ID = domain.ConfigID
		p.fallback = &cfg
	}
	return *p.fallback
}

func applyConfigPatch(cfg *Config, patch ConfigPatch) {
	if patch.RFIDTagCompanyPrefix != nil {
		cfg.RFIDTagCompanyPrefix = strings.TrimSpace(*patch.RFIDTagCompanyPrefix)
	}
	if patch.RFIDTagIndividualAssetReferencePrefix != nil {
		cfg.RFIDTagIndividualAssetReferencePrefix = strings.TrimSpace(*patch.RFIDTagIndividualAssetReferencePrefix)
	}
	if patch.RFIDTagAccessPassword != nil {
		cfg.RFIDTagAccessPassword = strings.ToLower(strings.TrimSpace(*patch.RFIDTagAccessPassword))
	}
	if patch.DefaultUseMixedRFIDTagAccessPassword != nil {
		cfg.DefaultUseMixedRFIDTagAccessPassword = *patch.DefaultUseMixedRFIDTagAccessPassword
	}
	if patch.RFIDTagAccessPasswordEncoding != nil {
		cfg.RFIDTagAccessPasswordEncoding = *patch.RFIDTagAccessPasswordEncoding
	}
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func asStorageError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
