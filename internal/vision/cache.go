package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cached wraps an Analyzer with a TTL cache keyed by photo content and hint.
// A non-positive ttl returns base unchanged.
func Cached(base Analyzer, ttl time.Duration) Analyzer {
	if ttl <= 0 || base == nil {
		return base
	}
	return &cachedAnalyzer{
		base:    base,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

type cachedAnalyzer struct {
	base    Analyzer
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	analysis RoomAnalysis
	expires  time.Time
}

func (c *cachedAnalyzer) Analyze(ctx context.Context, photo Photo, hint RoomType) (RoomAnalysis, error) {
	key := photoKey(photo, hint)
	now := c.now()

	c.mu.RLock()
	if entry, ok := c.entries[key]; ok && entry.expires.After(now) {
		c.mu.RUnlock()
		return entry.analysis, nil
	}
	c.mu.RUnlock()

	analysis, err := c.base.Analyze(ctx, photo, hint)
	if err != nil {
		return RoomAnalysis{}, err
	}
	// degraded stand-ins are never cached so a later call can succeed
	if analysis.Degraded {
		return analysis, nil
	}

	c.mu.Lock()
	c.pruneLocked(now)
	c.entries[key] = cacheEntry{analysis: analysis, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return analysis, nil
}

func (c *cachedAnalyzer) QuickCheck(ctx context.Context, photo Photo) (QuickCheck, error) {
	return c.base.QuickCheck(ctx, photo)
}

func (c *cachedAnalyzer) pruneLocked(now time.Time) {
	for key, entry := range c.entries {
		if !entry.expires.After(now) {
			delete(c.entries, key)
		}
	}
}

func photoKey(photo Photo, hint RoomType) string {
	sum := sha256.Sum256(photo.Data)
	return hex.EncodeToString(sum[:]) + "|" + string(hint)
}

// Degrading wraps an Analyzer so that analysis failures never block the
// conversation: the caller receives NeutralAnalysis instead. Caller
// cancellation is still returned as an error.
func Degrading(base Analyzer, logger *zap.Logger) Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &degradingAnalyzer{base: base, logger: logger}
}

type degradingAnalyzer struct {
	base   Analyzer
	logger *zap.Logger
}

func (d *degradingAnalyzer) Analyze(ctx context.Context, photo Photo, hint RoomType) (RoomAnalysis, error) {
	if d.base == nil {
		d.logger.Warn("photo analysis unavailable, using neutral analysis")
		return NeutralAnalysis(hint), nil
	}
	analysis, err := d.base.Analyze(ctx, photo, hint)
	if err == nil {
		return analysis, nil
	}
	if ctx.Err() != nil {
		return RoomAnalysis{}, ctx.Err()
	}
	d.logger.Warn("photo analysis failed, using neutral analysis",
		zap.String("hint", string(hint)),
		zap.Bool("terminal", IsTerminal(err)),
		zap.Error(err))
	return NeutralAnalysis(hint), nil
}

func (d *degradingAnalyzer) QuickCheck(ctx context.Context, photo Photo) (QuickCheck, error) {
	if d.base == nil {
		return QuickCheck{IsValid: true}, nil
	}
	check, err := d.base.QuickCheck(ctx, photo)
	if err == nil {
		return check, nil
	}
	if ctx.Err() != nil {
		return QuickCheck{}, ctx.Err()
	}
	d.logger.Warn("quick check failed, assuming photo is usable", zap.Error(err))
	return QuickCheck{RoomType: RoomUnknown, IsValid: true, Confidence: 0}, nil
}
