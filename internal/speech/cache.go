package speech

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/myrjola/orb/internal/errors"
)

// Cached remembers successful syntheses of an inner strategy so that replayed lines are not paid for twice.
type Cached struct {
	inner  Strategy
	cache  *lru.Cache[string, Speech]
	logger *slog.Logger
}

func NewCached(inner Strategy, size int, logger *slog.Logger) (*Cached, error) {
	cache, err := lru.New[string, Speech](size)
	if err != nil {
		return nil, errors.Wrap(err, "new lru", slog.Int("size", size))
	}
	return &Cached{
		inner:  inner,
		cache:  cache,
		logger: logger.With(slog.String("component", "speech.cache"), slog.String("strategy", inner.Name())),
	}, nil
}

func (c *Cached) Name() string {
	return c.inner.Name()
}

func (c *Cached) Synthesize(ctx context.Context, req Request) Result {
	key := fmt.Sprintf("%s|%.2f|%s", req.Emotion, req.Intensity, req.Text)
	if s, ok := c.cache.Get(key); ok {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "speech cache hit", slog.Int("bytes", len(s.Audio)))
		return succeeded(s)
	}
	result := c.inner.Synthesize(ctx, req)
	if result.OK() {
		c.cache.Add(key, *result.Speech)
	}
	return result
}

// CacheVoices wraps every strategy in its own cache.
func CacheVoices(strategies []Strategy, size int, logger *slog.Logger) ([]Strategy, error) {
	wrapped := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		c, err := NewCached(s, size, logger)
		if err != nil {
			return nil, err
		}
		wrapped = append(wrapped, c)
	}
	return wrapped, nil
}
