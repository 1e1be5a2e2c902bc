package databox

import (
	"context"
	"strings"

	"github.com/dustin/go-humanize"
)

// AuthConfigUpdate carries auth settings to change. Nil fields are left alone.
type AuthConfigUpdate struct {
	EnableEmailAuth *bool
	EnableMagicLink *bool
	EnableOAuth     *bool
	OAuthProviders  []OAuthProvider // nil leaves the list unchanged
	SessionTimeout  *int            // seconds
}

// StorageConfigUpdate carries storage settings to change. Nil fields are left alone.
type StorageConfigUpdate struct {
	MaxFileSize      *string
	AllowedMimeTypes []string
}

// BucketInput describes a new storage bucket.
type BucketInput struct {
	Name             string
	Public           bool
	FileSizeLimit    string
	AllowedMimeTypes []string
}

// UpdateAuthConfig merges u into the project's auth settings.
// The JWT secret is fixed at creation and cannot be changed here.
func (w *Workspace) UpdateAuthConfig(ctx context.Context, projectID string, u AuthConfigUpdate) (*AuthConfig, error) {
	for _, p := range u.OAuthProviders {
		if !p.Valid() {
			return nil, invalid("oauthProviders", "unknown provider %q", p)
		}
	}
	if u.SessionTimeout != nil && *u.SessionTimeout <= 0 {
		return nil, invalid("sessionTimeout", "must be positive")
	}

	var out AuthConfig
	err := w.mutate(ctx, "UpdateAuthConfig", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		c := &p.AuthConfig
		if u.EnableEmailAuth != nil {
			c.EnableEmailAuth = *u.EnableEmailAuth
		}
		if u.EnableMagicLink != nil {
			c.EnableMagicLink = *u.EnableMagicLink
		}
		if u.EnableOAuth != nil {
			c.EnableOAuth = *u.EnableOAuth
		}
		if u.OAuthProviders != nil {
			c.OAuthProviders = cloneSlice(u.OAuthProviders)
		}
		if u.SessionTimeout != nil {
			c.SessionTimeout = *u.SessionTimeout
		}
		p.UpdatedAt = w.clock.Now().UTC()
		out = *c
		out.OAuthProviders = cloneSlice(c.OAuthProviders)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStorageConfig merges u into the project's storage settings.
func (w *Workspace) UpdateStorageConfig(ctx context.Context, projectID string, u StorageConfigUpdate) error {
	if u.MaxFileSize != nil {
		if err := checkSize("maxFileSize", *u.MaxFileSize); err != nil {
			return err
		}
	}
	return w.mutate(ctx, "UpdateStorageConfig", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		if u.MaxFileSize != nil {
			p.StorageConfig.MaxFileSize = strings.TrimSpace(*u.MaxFileSize)
		}
		if u.AllowedMimeTypes != nil {
			p.StorageConfig.AllowedMimeTypes = cloneSlice(u.AllowedMimeTypes)
		}
		p.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
}

// CreateBucket adds a storage bucket. Bucket names are unique per project.
func (w *Workspace) CreateBucket(ctx context.Context, projectID string, in BucketInput) (*StorageBucket, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "bucket name is required")
	}
	if in.FileSizeLimit == "" {
		in.FileSizeLimit = DefaultMaxFileSize
	}
	if err := checkSize("fileSizeLimit", in.FileSizeLimit); err != nil {
		return nil, err
	}
	mimes := cloneSlice(in.AllowedMimeTypes)
	if len(mimes) == 0 {
		mimes = []string{"*"}
	}

	var created StorageBucket
	err := w.mutate(ctx, "CreateBucket", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		for _, b := range p.StorageConfig.Buckets {
			if b.Name == in.Name {
				return false, invalid("name", "bucket %q already exists", in.Name)
			}
		}
		now := w.clock.Now().UTC()
		created = StorageBucket{
			ID:               w.idgen.New(),
			Name:             in.Name,
			Public:           in.Public,
			FileSizeLimit:    strings.TrimSpace(in.FileSizeLimit),
			AllowedMimeTypes: mimes,
			CreatedAt:        now,
		}
		p.StorageConfig.Buckets = append(p.StorageConfig.Buckets, created)
		p.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	created.AllowedMimeTypes = cloneSlice(created.AllowedMimeTypes)
	return &created, nil
}

// DeleteBucket removes a storage bucket by id.
func (w *Workspace) DeleteBucket(ctx context.Context, projectID, bucketID string) error {
	return w.mutate(ctx, "DeleteBucket", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		buckets := p.StorageConfig.Buckets
		for i, b := range buckets {
			if b.ID == bucketID {
				p.StorageConfig.Buckets = append(buckets[:i], buckets[i+1:]...)
				p.UpdatedAt = w.clock.Now().UTC()
				return true, nil
			}
		}
		return false, &NotFoundError{Kind: "bucket", ID: bucketID}
	})
}

func checkSize(field, size string) error {
	if _, err := humanize.ParseBytes(strings.TrimSpace(size)); err != nil {
		return invalid(field, "%q is not a size", size)
	}
	return nil
}
