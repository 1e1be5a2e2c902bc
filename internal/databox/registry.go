package databox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Defaults seeded into every new project.
const (
	DefaultSessionTimeout = 3600
	DefaultMaxFileSize    = "50MB"
	DefaultBucketName     = "default"
)

// ProjectUpdate carries the user-editable project fields. Nil fields are left alone.
// Identity, owner and endpoint URLs are deliberately absent.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Region      *Region
	Status      *ProjectStatus
}

// CreateProject registers a new project in region, seeded with the default
// auth and storage settings and one anon and one service_role key.
func (w *Workspace) CreateProject(ctx context.Context, name, description string, region Region) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "project name is required")
	}
	if region == "" {
		region = DefaultRegion
	}
	if !region.Valid() {
		return nil, invalid("region", "unsupported region %q", region)
	}

	var created *Project
	err := w.mutate(ctx, "CreateProject", func(g *graph) (bool, error) {
		secret, err := newJWTSecret(w.random)
		if err != nil {
			return false, fmt.Errorf("generating jwt secret: %w", err)
		}
		now := w.clock.Now().UTC()
		p := &Project{
			ID:          w.newID(g),
			Name:        name,
			Description: strings.TrimSpace(description),
			UserID:      w.tenant,
			Region:      region,
			Status:      StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
			Tables:      []*Table{},
			APIKeys:     []APIKey{},
			AuthConfig: AuthConfig{
				EnableEmailAuth: true,
				OAuthProviders:  []OAuthProvider{},
				JWTSecret:       secret,
				SessionTimeout:  DefaultSessionTimeout,
			},
			RLSPolicies: []RLSPolicy{},
		}
		w.endpoints.apply(p)
		g.projects = append(g.projects, p)

		bucket := defaultBucket(now)
		bucket.ID = w.newID(g)
		p.StorageConfig = StorageConfig{
			Buckets:          []StorageBucket{bucket},
			MaxFileSize:      DefaultMaxFileSize,
			AllowedMimeTypes: []string{"*"},
		}

		if _, err := w.issueKey(g, p, "Anonymous Key", KeyAnon); err != nil {
			return false, err
		}
		if _, err := w.issueKey(g, p, "Service Role Key", KeyServiceRole); err != nil {
			return false, err
		}
		created = p
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

func defaultBucket(now time.Time) StorageBucket {
	return StorageBucket{
		Name:             DefaultBucketName,
		Public:           true,
		FileSizeLimit:    DefaultMaxFileSize,
		AllowedMimeTypes: []string{"image/*", "video/*", "application/pdf"},
		CreatedAt:        now,
	}
}

// DeleteProject removes a project with all of its tables, rows and keys.
// The current selection is cleared when it pointed at the project.
func (w *Workspace) DeleteProject(ctx context.Context, projectID string) error {
	err := w.mutate(ctx, "DeleteProject", func(g *graph) (bool, error) {
		i := indexOfProject(g.projects, projectID)
		if i < 0 {
			return false, &NotFoundError{Kind: "project", ID: projectID}
		}
		g.projects = append(g.projects[:i], g.projects[i+1:]...)
		return true, nil
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.currentID == projectID {
		w.currentID = ""
	}
	w.mu.Unlock()
	return nil
}

// UpdateProject merges the non-nil fields of u into the project.
func (w *Workspace) UpdateProject(ctx context.Context, projectID string, u ProjectUpdate) (*Project, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, invalid("name", "project name is required")
	}
	if u.Region != nil && !u.Region.Valid() {
		return nil, invalid("region", "unsupported region %q", *u.Region)
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, invalid("status", "unknown status %q", *u.Status)
	}

	var updated *Project
	err := w.mutate(ctx, "UpdateProject", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		if u.Name != nil {
			p.Name = strings.TrimSpace(*u.Name)
		}
		if u.Description != nil {
			p.Description = strings.TrimSpace(*u.Description)
		}
		if u.Region != nil {
			p.Region = *u.Region
		}
		if u.Status != nil {
			p.Status = *u.Status
		}
		p.UpdatedAt = w.clock.Now().UTC()
		updated = p
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// ListProjects returns copies of all projects in creation order. It fails
// on a workspace that is not open.
func (w *Workspace) ListProjects() ([]*Project, error) {
	out := []*Project{}
	err := w.read(func(g *graph) error {
		if cloned := CloneProjects(g.projects); cloned != nil {
			out = cloned
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetProject returns a copy of the project with the given id.
func (w *Workspace) GetProject(projectID string) (*Project, error) {
	var out *Project
	err := w.read(func(g *graph) error {
		p, err := g.project(projectID)
		if err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// FindProject resolves a project by id, falling back to an exact name match.
func (w *Workspace) FindProject(ref string) (*Project, error) {
	var out *Project
	err := w.read(func(g *graph) error {
		if p, err := g.project(ref); err == nil {
			out = p.Clone()
			return nil
		}
		for _, p := range g.projects {
			if p.Name == ref {
				out = p.Clone()
				return nil
			}
		}
		return &NotFoundError{Kind: "project", ID: ref}
	})
	return out, err
}

// SelectProject marks a project as the current selection. An empty id clears it.
// The selection is session state and is not persisted with the graph.
func (w *Workspace) SelectProject(projectID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return errNotOpen
	}
	if projectID != "" && indexOfProject(w.projects, projectID) < 0 {
		return &NotFoundError{Kind: "project", ID: projectID}
	}
	w.currentID = projectID
	return nil
}

// CurrentProject returns a copy of the selected project.
func (w *Workspace) CurrentProject() (*Project, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.currentID == "" {
		return nil, false
	}
	i := indexOfProject(w.projects, w.currentID)
	if i < 0 {
		return nil, false
	}
	return w.projects[i].Clone(), true
}
