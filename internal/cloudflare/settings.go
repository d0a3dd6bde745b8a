package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	cf "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// SettingValues lists the accepted values of the zone settings whose value
// is checked before an update. Other settings are passed through.
var SettingValues = map[string][]string{
	"ssl":              {"off", "flexible", "full", "strict"},
	"always_use_https": {"on", "off"},
	"security_level":   {"off", "essentially_off", "low", "medium", "high", "under_attack"},
	"cache_level":      {"aggressive", "basic", "simplified"},
	"development_mode": {"on", "off"},
}

// CheckSettingValue reports whether value is acceptable for setting.
func CheckSettingValue(setting string, value any) error {
	allowed, ok := SettingValues[setting]
	if !ok {
		return nil
	}
	s, isString := value.(string)
	if !isString || !slices.Contains(allowed, s) {
		return fmt.Errorf("invalid value %v for %s; allowed: %v", value, setting, allowed)
	}
	return nil
}

// Setting is the flattened form of a zone setting.
type Setting struct {
	ID       string `json:"id"`
	Value    any    `json:"value"`
	Editable bool   `json:"editable"`
	Modified string `json:"modified_on,omitempty"`
}

// ZoneSettings returns every setting of a zone, sorted by ID.
func (c *Client) ZoneSettings(ctx context.Context, zoneID string) ([]Setting, error) {
	resp, err := call(ctx, func(ctx context.Context) (*cf.ZoneSettingResponse, error) {
		return c.api.ZoneSettings(ctx, zoneID)
	})
	if err != nil {
		return nil, fmt.Errorf("get settings for zone %s: %w", zoneID, err)
	}
	out := make([]Setting, 0, len(resp.Result))
	for _, s := range resp.Result {
		out = append(out, Setting{ID: s.ID, Value: s.Value, Editable: s.Editable, Modified: s.ModifiedOn})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateZoneSetting sets one zone setting.
func (c *Client) UpdateZoneSetting(ctx context.Context, zoneID, setting string, value any) (*Setting, error) {
	if err := CheckSettingValue(setting, value); err != nil {
		return nil, err
	}
	s, err := call(ctx, func(ctx context.Context) (cf.ZoneSetting, error) {
		return c.api.UpdateZoneSetting(ctx, cf.ZoneIdentifier(zoneID), cf.UpdateZoneSettingParams{
			Name:  setting,
			Value: value,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update %s on zone %s: %w", setting, zoneID, err)
	}
	c.logger.Info("cloudflare: zone setting updated",
		zap.String("zone_id", zoneID),
		zap.String("setting", setting),
		zap.Any("value", value),
	)
	return &Setting{ID: s.ID, Value: s.Value, Editable: s.Editable, Modified: s.ModifiedOn}, nil
}

// PurgeRequest selects what to purge. Everything excludes the other fields.
type PurgeRequest struct {
	Everything bool
	Files      []string
	Tags       []string
	Hosts      []string
}

// ErrNothingToPurge is returned when a purge request names no target.
var ErrNothingToPurge = errors.New("purge requires purge_everything or at least one of files, tags, hosts")

// PurgeCache purges a zone's cache and returns the purge ID.
func (c *Client) PurgeCache(ctx context.Context, zoneID string, req PurgeRequest) (string, error) {
	if !req.Everything && len(req.Files) == 0 && len(req.Tags) == 0 && len(req.Hosts) == 0 {
		return "", ErrNothingToPurge
	}
	resp, err := call(ctx, func(ctx context.Context) (cf.PurgeCacheResponse, error) {
		if req.Everything {
			return c.api.PurgeEverything(ctx, zoneID)
		}
		return c.api.PurgeCache(ctx, zoneID, cf.PurgeCacheRequest{
			Files: req.Files,
			Tags:  req.Tags,
			Hosts: req.Hosts,
		})
	})
	if err != nil {
		return "", fmt.Errorf("purge cache for zone %s: %w", zoneID, err)
	}
	c.logger.Info("cloudflare: cache purged",
		zap.String("zone_id", zoneID),
		zap.Bool("everything", req.Everything),
		zap.Int("files", len(req.Files)),
	)
	return resp.Result.ID, nil
}
