package provider

import (
	"context"
	"strings"

	"deeptune/internal/logger"
)

// Chain tries several cover finders in order and returns the first match.
type Chain struct {
	finders []CoverFinder
	logger  *logger.Logger
}

// NewChain creates a Chain that queries finders in order.
func NewChain(finders []CoverFinder, log *logger.Logger) *Chain {
	if log == nil {
		log = logger.Discard()
	}
	return &Chain{finders: finders, logger: log}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.finders))
	for i, f := range c.finders {
		names[i] = f.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// FindCover never fails: a finder error only moves on to the next one.
func (c *Chain) FindCover(ctx context.Context, artist, title string) (Song, bool, error) {
	for _, f := range c.finders {
		song, found, err := f.FindCover(ctx, artist, title)
		if err != nil {
			c.logger.Debug("provider %s failed: %v", f.Name(), err)
			continue
		}
		if found {
			return song, true, nil
		}
	}
	return Song{}, false, nil
}
