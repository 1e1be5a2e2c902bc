package databox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RecordFormat tags the envelope written for every tenant.
const RecordFormat = "databox/v1"

// tenantRecord is the serialized form of a tenant graph.
type tenantRecord struct {
	Format   string     `json:"format"`
	Tenant   TenantID   `json:"tenant"`
	SavedAt  time.Time  `json:"savedAt"`
	Projects []*Project `json:"projects"`
}

// PersistenceOptions bounds every Load and Save.
type PersistenceOptions struct {
	Timeout       time.Duration // per attempt
	MaxRetries    int
	RetryInterval time.Duration // initial backoff
}

// DefaultPersistenceOptions returns the options used when none are configured.
func DefaultPersistenceOptions() PersistenceOptions {
	return PersistenceOptions{
		Timeout:       10 * time.Second,
		MaxRetries:    3,
		RetryInterval: 200 * time.Millisecond,
	}
}

// PersistenceAdapter moves whole tenant graphs across the durable boundary.
// Records are encrypted with the Encryptor on the way out and decrypted with
// the DecryptionContext on the way in.
type PersistenceAdapter struct {
	store      Store
	encryptor  Encryptor
	decryption DecryptionContext
	clock      Clock
	logger     Logger
	opts       PersistenceOptions
}

// NewPersistenceAdapter creates an adapter. Zero-valued options fall back to
// DefaultPersistenceOptions field by field.
func NewPersistenceAdapter(store Store, encryptor Encryptor, decryption DecryptionContext, clock Clock, logger Logger, opts PersistenceOptions) *PersistenceAdapter {
	defaults := DefaultPersistenceOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaults.RetryInterval
	}
	return &PersistenceAdapter{
		store:      store,
		encryptor:  encryptor,
		decryption: decryption,
		clock:      clock,
		logger:     logger,
		opts:       opts,
	}
}

// Load reads the tenant graph and the version it was stored under.
// A tenant with no record yields an empty list and version 0.
func (a *PersistenceAdapter) Load(ctx context.Context, tenant TenantID) ([]*Project, int64, error) {
	var (
		projects []*Project
		version  int64
	)
	err := a.retry(ctx, "load", tenant, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()

		var buf bytes.Buffer
		v, err := a.store.Get(attemptCtx, tenant, &buf)
		if err != nil {
			return err
		}
		if v == 0 {
			projects, version = []*Project{}, 0
			return nil
		}

		var plain bytes.Buffer
		if err := a.decryption.Decrypt(&buf, &plain); err != nil {
			return backoff.Permanent(fmt.Errorf("decrypting record: %w", err))
		}
		rec, err := decodeRecord(plain.Bytes())
		if err != nil {
			return backoff.Permanent(err)
		}
		if rec.Tenant != tenant {
			return backoff.Permanent(fmt.Errorf("record belongs to tenant %s", rec.Tenant))
		}
		projects, version = rec.Projects, v
		if projects == nil {
			projects = []*Project{}
		}
		return nil
	})
	if err != nil {
		return nil, 0, &PersistenceError{Op: "load", Tenant: tenant, Err: err}
	}
	a.logger.Debug("tenant loaded", "tenant", tenant, "version", version, "projects", len(projects))
	return projects, version, nil
}

// Save writes the full tenant graph. baseVersion must be the version the
// graph was loaded or last saved under; a mismatch fails with ErrStaleVersion
// and is never retried.
func (a *PersistenceAdapter) Save(ctx context.Context, tenant TenantID, projects []*Project, baseVersion int64) (int64, error) {
	if projects == nil {
		projects = []*Project{}
	}
	plain, err := json.Marshal(tenantRecord{
		Format:   RecordFormat,
		Tenant:   tenant,
		SavedAt:  a.clock.Now().UTC(),
		Projects: projects,
	})
	if err != nil {
		return 0, &PersistenceError{Op: "save", Tenant: tenant, Err: fmt.Errorf("encoding record: %w", err)}
	}

	var sealed bytes.Buffer
	if err := a.encryptor.Encrypt(bytes.NewReader(plain), &sealed); err != nil {
		return 0, &PersistenceError{Op: "save", Tenant: tenant, Err: fmt.Errorf("encrypting record: %w", err)}
	}
	data := sealed.Bytes()

	var version int64
	err = a.retry(ctx, "save", tenant, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()

		v, err := a.store.Put(attemptCtx, tenant, bytes.NewReader(data), int64(len(data)), baseVersion)
		if err != nil {
			if errors.Is(err, ErrStaleVersion) {
				return backoff.Permanent(err)
			}
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, &PersistenceError{Op: "save", Tenant: tenant, Err: err}
	}
	a.logger.Debug("tenant saved", "tenant", tenant, "version", version, "bytes", len(data))
	return version, nil
}

func (a *PersistenceAdapter) retry(ctx context.Context, op string, tenant TenantID, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.opts.RetryInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(a.opts.MaxRetries)), ctx)
	return backoff.RetryNotify(fn, b, func(err error, wait time.Duration) {
		a.logger.Warn("persistence attempt failed", "op", op, "tenant", tenant, "error", err, "retry_in", wait)
	})
}

func decodeRecord(data []byte) (*tenantRecord, error) {
	var rec tenantRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	if rec.Format != RecordFormat {
		return nil, fmt.Errorf("unsupported record format %q", rec.Format)
	}
	return &rec, nil
}
