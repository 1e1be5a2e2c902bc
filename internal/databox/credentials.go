package databox

import (
	"context"
	"fmt"
	"strings"
)

// maxTokenAttempts bounds re-rolls after a token collision.
const maxTokenAttempts = 5

// IssueKey mints a new active key of the given type for a project.
func (w *Workspace) IssueKey(ctx context.Context, projectID, name string, keyType KeyType) (*APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "key name is required")
	}
	if !keyType.Valid() {
		return nil, invalid("type", "unknown key type %q", keyType)
	}

	var issued APIKey
	err := w.mutate(ctx, "IssueKey", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		issued, err = w.issueKey(g, p, name, keyType)
		if err != nil {
			return false, err
		}
		p.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	out := issued.Clone()
	return &out, nil
}

// issueKey appends a fresh key to p. The token is re-rolled when it collides
// with any key of any project of the tenant, active or revoked.
func (w *Workspace) issueKey(g *graph, p *Project, name string, keyType KeyType) (APIKey, error) {
	now := w.clock.Now().UTC()
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := w.tokens.Generate(p, keyType, now)
		if err != nil {
			return APIKey{}, fmt.Errorf("generating key token: %w", err)
		}
		if g.hasToken(token) {
			w.logger.Warn("api key token collision, re-rolling", "project", p.ID, "attempt", attempt)
			continue
		}
		key := APIKey{
			ID:          w.newID(g),
			Name:        name,
			Key:         token,
			Type:        keyType,
			Permissions: keyType.Permissions(),
			CreatedAt:   now,
			IsActive:    true,
		}
		p.APIKeys = append(p.APIKeys, key)
		return key, nil
	}
	return APIKey{}, fmt.Errorf("issuing key for project %s: %w", p.ID, ErrDuplicateKey)
}

func (g *graph) hasToken(token string) bool {
	for _, p := range g.projects {
		for _, k := range p.APIKeys {
			if k.Key == token {
				return true
			}
		}
	}
	return false
}

// RevokeKey deactivates a key. Revoking an already inactive key succeeds
// without writing anything.
func (w *Workspace) RevokeKey(ctx context.Context, projectID, keyID string) error {
	return w.mutate(ctx, "RevokeKey", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		for i := range p.APIKeys {
			if p.APIKeys[i].ID != keyID {
				continue
			}
			if !p.APIKeys[i].IsActive {
				return false, nil
			}
			p.APIKeys[i].IsActive = false
			p.UpdatedAt = w.clock.Now().UTC()
			return true, nil
		}
		return false, &NotFoundError{Kind: "api key", ID: keyID}
	})
}

// ListKeys returns copies of the project's keys in issue order.
func (w *Workspace) ListKeys(projectID string) ([]APIKey, error) {
	var out []APIKey
	err := w.read(func(g *graph) error {
		p, err := g.project(projectID)
		if err != nil {
			return err
		}
		out = make([]APIKey, len(p.APIKeys))
		for i, k := range p.APIKeys {
			out[i] = k.Clone()
		}
		return nil
	})
	return out, err
}
