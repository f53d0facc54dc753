package cache

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// genaiAPI implements remoteAPI against the model's cached-content and
// token-counting endpoints.
type genaiAPI struct {
	client *genai.Client
	model  string
}

func (g *genaiAPI) CreateCache(ctx context.Context, systemInstruction, contents string, ttl time.Duration) (string, time.Time, error) {
	cc, err := g.client.Caches.Create(ctx, g.model, &genai.CreateCachedContentConfig{
		TTL:               ttl,
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Contents: []*genai.Content{
			genai.NewContentFromText(contents, genai.RoleUser),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return cc.Name, cc.ExpireTime, nil
}

func (g *genaiAPI) UpdateTTL(ctx context.Context, handle string, ttl time.Duration) error {
	_, err := g.client.Caches.Update(ctx, handle, &genai.UpdateCachedContentConfig{TTL: ttl})
	return err
}

func (g *genaiAPI) CountTokens(ctx context.Context, text string) (int32, error) {
	resp, err := g.client.Models.CountTokens(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return 0, err
	}
	return resp.TotalTokens, nil
}
