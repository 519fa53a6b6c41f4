package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/repository"
	"github.com/retailcore/till-service/pkg/cache"
	"github.com/retailcore/till-service/pkg/logger"
	"github.com/shopspring/decimal"
)

type SettingsRepository interface {
	GetByBranch(ctx context.Context, branchID string) (*model.TillSettings, error)
	GetByBranchForUpdate(ctx context.Context, branchID string) (*model.TillSettings, error)
	Create(ctx context.Context, s *model.TillSettings) (*model.TillSettings, error)
	Update(ctx context.Context, s *model.TillSettings) (*model.TillSettings, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SettingsService serves per-branch configuration through a short-lived
// cache. Reads tolerate a stale entry up to the TTL; writes refresh the
// cache with the authoritative row in the same call.
type SettingsService struct {
	repo  SettingsRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewSettingsService(repo SettingsRepository, c cache.Cache, ttl time.Duration) *SettingsService {
	return &SettingsService{
		repo:  repo,
		cache: c,
		ttl:   ttl,
	}
}

func settingsCacheKey(branchID string) string {
	return "till:settings:" + branchID
}

// Get returns the branch settings, materializing defaults on first read.
func (s *SettingsService) Get(ctx context.Context, branchID string) (*model.TillSettings, error) {
	if branchID == "" {
		return nil, Validation("branch_id is required")
	}

	if s.cache != nil {
		if raw, ok := s.cache.Get(settingsCacheKey(branchID)); ok {
			var cached model.TillSettings
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
			s.cache.Delete(settingsCacheKey(branchID))
		}
	}

	settings, err := s.repo.GetByBranch(ctx, branchID)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingsNotFound) {
			return nil, Persistence(err, "load settings")
		}

		defaults := model.DefaultTillSettings(branchID)
		now := time.Now().UTC()
		defaults.CreatedAt = now
		defaults.UpdatedAt = now

		settings, err = s.repo.Create(ctx, defaults)
		if err != nil {
			return nil, Persistence(err, "create default settings")
		}
		logger.Info("till settings initialized with defaults", "branch", branchID)
	}

	s.cacheSet(settings)
	return settings, nil
}

// Update applies a partial change and returns the authoritative row. The
// read-modify-write runs under a row lock so concurrent updates serialize.
func (s *SettingsService) Update(ctx context.Context, branchID string, patch model.TillSettingsPatch) (*model.TillSettings, error) {
	if _, ok := model.ActorFromContext(ctx); !ok {
		return nil, Validation("acting user is required")
	}
	if branchID == "" {
		return nil, Validation("branch_id is required")
	}
	if err := patch.Validate(); err != nil {
		return nil, Validation("%s", err.Error())
	}

	var updated *model.TillSettings
	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByBranchForUpdate(ctx, branchID)
		if err != nil {
			if !errors.Is(err, repository.ErrSettingsNotFound) {
				return Persistence(err, "load settings")
			}
			defaults := model.DefaultTillSettings(branchID)
			now := time.Now().UTC()
			defaults.CreatedAt = now
			defaults.UpdatedAt = now
			current, err = s.repo.Create(ctx, defaults)
			if err != nil {
				return Persistence(err, "create default settings")
			}
		}

		patch.Apply(current)
		if current.MinTillAmount.GreaterThan(current.MaxTillAmount) {
			return Validation("min_till_amount must not exceed max_till_amount")
		}
		current.UpdatedAt = time.Now().UTC()

		updated, err = s.repo.Update(ctx, current)
		if err != nil {
			return Persistence(err, "update settings")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "update settings")
	}

	s.cacheSet(updated)
	logger.Info("till settings updated", "branch", branchID)
	return updated, nil
}

// UpdateKey changes a single named setting. The value is parsed according
// to the key's type, then applied through the same locked path as Update.
func (s *SettingsService) UpdateKey(ctx context.Context, branchID, key, value string) (*model.TillSettings, error) {
	var patch model.TillSettingsPatch

	switch key {
	case "till_cash_management_enabled", "auto_cash_drops_enabled",
		"till_count_reminders_enabled", "variance_alerts_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, Validation("%s expects a boolean, got %q", key, value)
		}
		switch key {
		case "till_cash_management_enabled":
			patch.TillCashManagementEnabled = &b
		case "auto_cash_drops_enabled":
			patch.AutoCashDropsEnabled = &b
		case "till_count_reminders_enabled":
			patch.TillCountRemindersEnabled = &b
		case "variance_alerts_enabled":
			patch.VarianceAlertsEnabled = &b
		}
	case "max_till_amount", "min_till_amount", "variance_threshold":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, Validation("%s expects a decimal amount, got %q", key, value)
		}
		switch key {
		case "max_till_amount":
			patch.MaxTillAmount = &d
		case "min_till_amount":
			patch.MinTillAmount = &d
		case "variance_threshold":
			patch.VarianceThreshold = &d
		}
	default:
		return nil, Validation("unknown setting %q", key)
	}

	return s.Update(ctx, branchID, patch)
}

func (s *SettingsService) cacheSet(settings *model.TillSettings) {
	if s.cache == nil || settings == nil {
		return
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return
	}
	s.cache.Set(settingsCacheKey(settings.BranchID), raw, s.ttl)
}
