// Package zones holds the rules for tenant price zones: validation, the single-default
// invariant, terminal resolution and a read-through cache of each tenant's zone list.
package zones

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"lancenter/backend/services/terminals-service/internal/apperr"
	"lancenter/backend/services/terminals-service/internal/models"
)

const defaultCacheTTL = 5 * time.Minute

// Loader fetches the zone list of a tenant from storage.
type Loader func(ctx context.Context, tenantID string) ([]models.Zone, error)

// Service caches zone lists per tenant. A list loaded across an Invalidate of the
// same tenant is returned but never cached.
type Service struct {
	cache  *cache.Cache
	logger *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewService returns a zone service whose cache entries live for ttl.
func NewService(ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cache:       cache.New(ttl, 2*ttl),
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

// List returns the tenant's zones, default first, loading them on a cache miss.
func (s *Service) List(ctx context.Context, tenantID string, load Loader) ([]models.Zone, error) {
	if cached, found := s.cache.Get(tenantID); found {
		return copyZones(cached.([]models.Zone)), nil
	}

	s.mu.Lock()
	generation := s.generations[tenantID]
	s.mu.Unlock()

	loaded, err := load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sortZones(loaded)

	s.mu.Lock()
	if s.generations[tenantID] == generation {
		s.cache.Set(tenantID, copyZones(loaded), cache.DefaultExpiration)
	}
	s.mu.Unlock()
	return loaded, nil
}

// For resolves the zone that prices terminal.
func (s *Service) For(ctx context.Context, terminal models.Terminal, load Loader) (models.Zone, error) {
	list, err := s.List(ctx, terminal.TenantID, load)
	if err != nil {
		return models.Zone{}, err
	}
	return Resolve(list, terminal.TenantID, terminal.ZoneID), nil
}

// Invalidate drops the cached list of a tenant.
func (s *Service) Invalidate(tenantID string) {
	s.mu.Lock()
	s.generations[tenantID]++
	s.cache.Delete(tenantID)
	s.mu.Unlock()
	s.logger.Debug("zone cache invalidated", zap.String("tenant_id", tenantID))
}

// Resolve picks zoneID from list, else the default zone, else the built-in fallback.
func Resolve(list []models.Zone, tenantID, zoneID string) models.Zone {
	var fallback *models.Zone
	for i := range list {
		if zoneID != "" && list[i].ID == zoneID {
			return list[i]
		}
		if list[i].IsDefault && fallback == nil {
			fallback = &list[i]
		}
	}
	if fallback != nil {
		return *fallback
	}
	return models.FallbackZone(tenantID)
}

// Find returns the zone with id.
func Find(list []models.Zone, id string) (models.Zone, bool) {
	for _, z := range list {
		if z.ID == id {
			return z, true
		}
	}
	return models.Zone{}, false
}

// Validate normalises zone in place and rejects malformed definitions.
func Validate(zone *models.Zone) error {
	zone.Name = strings.TrimSpace(zone.Name)
	if zone.Name == "" {
		return apperr.Validation("zone name is required")
	}
	if zone.Tolerance < 0 || zone.Tolerance > models.MaxMinutes {
		return apperr.Validation("zone tolerance must be between 0 and %d", models.MaxMinutes)
	}
	if len(zone.Rules) == 0 {
		return apperr.Validation("zone %q needs at least one price rule", zone.Name)
	}

	seen := make(map[int]struct{}, len(zone.Rules))
	for _, rule := range zone.Rules {
		if rule.Minutes <= 0 || rule.Minutes > models.MaxMinutes {
			return apperr.Validation("rule minutes must be between 1 and %d", models.MaxMinutes)
		}
		if rule.Price.IsNegative() {
			return apperr.Validation("rule price must not be negative")
		}
		if !models.IsCents(rule.Price) {
			return apperr.Validation("rule price must have at most %d decimal places", models.MoneyPlaces)
		}
		if _, dup := seen[rule.Minutes]; dup {
			return apperr.Validation("duplicate rule for %d minutes", rule.Minutes)
		}
		seen[rule.Minutes] = struct{}{}
	}
	zone.Rules = zone.SortedRules()
	return nil
}

// PlanSave validates incoming against the tenant's existing zones and returns every zone
// that must be written so exactly one default remains. incoming gets an id if it has none.
func PlanSave(existing []models.Zone, incoming models.Zone) ([]models.Zone, error) {
	if err := Validate(&incoming); err != nil {
		return nil, err
	}
	if incoming.ID == "" {
		incoming.ID = uuid.NewString()
	} else if current, ok := Find(existing, incoming.ID); ok && current.IsDefault && !incoming.IsDefault {
		return nil, apperr.Precondition("zone %q is the default; mark another zone as default instead", current.Name)
	}

	hasOtherDefault := false
	for _, z := range existing {
		if z.ID != incoming.ID && z.IsDefault {
			hasOtherDefault = true
		}
	}
	if !hasOtherDefault {
		incoming.IsDefault = true
	}

	writes := []models.Zone{incoming}
	if incoming.IsDefault {
		for _, z := range existing {
			if z.ID != incoming.ID && z.IsDefault {
				z.IsDefault = false
				writes = append(writes, z)
			}
		}
	}
	return writes, nil
}

// CheckDelete rejects deleting unknown or default zones.
func CheckDelete(existing []models.Zone, id string) error {
	zone, ok := Find(existing, id)
	if !ok {
		return apperr.NotFound("zone %s not found", id)
	}
	if zone.IsDefault {
		return apperr.Precondition("zone %q is the default and cannot be deleted", zone.Name)
	}
	return nil
}

func sortZones(list []models.Zone) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsDefault != list[j].IsDefault {
			return list[i].IsDefault
		}
		return list[i].Name < list[j].Name
	})
}

func copyZones(list []models.Zone) []models.Zone {
	out := make([]models.Zone, len(list))
	for i, z := range list {
		z.Rules = append([]models.PriceRule(nil), z.Rules...)
		out[i] = z
	}
	return out
}
