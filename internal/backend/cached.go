package backend

import (
	"context"
	"strconv"

	"github.com/griffinclark/Dan-at-Dawn/internal/cache"
)

type cached struct {
	next  Backend
	cache *cache.Cache
	model string
}

// WithCache serves repeated generations from c. The key covers the provider,
// model, temperature, token limit and full prompt. Failed generations are
// never cached.
func WithCache(next Backend, c *cache.Cache, model string) Backend {
	if c == nil || !c.Enabled() {
		return next
	}
	return &cached{next: next, cache: c, model: model}
}

func (c *cached) Name() string { return c.next.Name() }

func (c *cached) Generate(ctx context.Context, req Request) (Response, error) {
	key := cache.Key(
		c.next.Name(),
		c.model,
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.Itoa(req.MaxTokens),
		req.Prompt,
	)
	if e, ok := c.cache.Get(key); ok {
		return Response{Content: e.Content, Model: e.Model, TokensUsed: e.TokensUsed}, nil
	}

	resp, err := c.next.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	// A failed write only costs a future cache miss.
	_ = c.cache.Put(key, cache.Entry{Content: resp.Content, Model: resp.Model, TokensUsed: resp.TokensUsed})
	return resp, nil
}
