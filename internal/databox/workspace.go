package databox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
)

var errNotOpen = errors.New("workspace is not open")

// Workspace is the in-memory view of one tenant's project graph.
//
// Every mutation is applied to a copy of the graph and persisted before it is
// swapped in, so memory always matches the last successful save. Callers are
// serialized by an internal mutex; cross-process writers are detected by the
// store version and fail with ErrStaleVersion.
type Workspace struct {
	tenant      TenantID
	persistence *PersistenceAdapter
	tokens      TokenGenerator
	endpoints   Endpoints
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	random      io.Reader

	mu        sync.Mutex
	open      bool
	projects  []*Project
	version   int64
	currentID string
	stats     DatabaseStats
}

// WorkspaceOption adjusts a Workspace built by NewWorkspace.
type WorkspaceOption func(*Workspace)

// WithRandom sets the entropy source for project JWT secrets. Nil means
// crypto/rand.
func WithRandom(r io.Reader) WorkspaceOption {
	return func(w *Workspace) { w.random = r }
}

// NewWorkspace creates a closed workspace for tenant. Call Open before use.
func NewWorkspace(tenant TenantID, persistence *PersistenceAdapter, tokens TokenGenerator, endpoints Endpoints, logger Logger, clock Clock, idgen IDGenerator, opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		tenant:      tenant,
		persistence: persistence,
		tokens:      tokens,
		endpoints:   endpoints,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// TenantFrom resolves the current tenant or fails with ErrNoTenant.
func TenantFrom(idp IdentityProvider) (TenantID, error) {
	tenant, ok := idp.CurrentTenant()
	if !ok || tenant == "" {
		return "", ErrNoTenant
	}
	return tenant, nil
}

// Tenant returns the tenant this workspace belongs to.
func (w *Workspace) Tenant() TenantID { return w.tenant }

// Open loads the tenant graph. Opening an open workspace reloads it.
func (w *Workspace) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	projects, version, err := w.persistence.Load(ctx, w.tenant)
	if err != nil {
		return fmt.Errorf("opening workspace: %w", err)
	}
	w.projects = projects
	w.version = version
	w.open = true
	if w.currentID != "" && indexOfProject(projects, w.currentID) < 0 {
		w.currentID = ""
	}
	w.stats = RecomputeStats(projects)
	w.logger.Info("workspace opened", "tenant", w.tenant, "projects", len(projects), "version", version)
	return nil
}

// Close drops the in-memory graph. Persisted state is untouched.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.projects = nil
	w.version = 0
	w.currentID = ""
	w.stats = DatabaseStats{}
	w.open = false
}

// Version returns the store version the in-memory graph corresponds to.
func (w *Workspace) Version() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.version
}

// Stats returns the aggregate computed after the last load or mutation.
func (w *Workspace) Stats() DatabaseStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Snapshot returns a deep copy of the whole graph.
func (w *Workspace) Snapshot() []*Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := CloneProjects(w.projects)
	if out == nil {
		out = []*Project{}
	}
	return out
}

// graph is the mutable copy handed to a mutation.
type graph struct {
	projects []*Project
}

func (g *graph) project(id string) (*Project, error) {
	if i := indexOfProject(g.projects, id); i >= 0 {
		return g.projects[i], nil
	}
	return nil, &NotFoundError{Kind: "project", ID: id}
}

func (g *graph) table(projectID, tableID string) (*Project, *Table, error) {
	p, err := g.project(projectID)
	if err != nil {
		return nil, nil, err
	}
	t, ok := p.Table(tableID)
	if !ok {
		return nil, nil, &NotFoundError{Kind: "table", ID: tableID}
	}
	return p, t, nil
}

func indexOfProject(projects []*Project, id string) int {
	for i, p := range projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// mutate applies fn to a copy of the graph, saves the copy and swaps it in.
// fn returns false when it made no change, in which case nothing is written.
func (w *Workspace) mutate(ctx context.Context, op string, fn func(g *graph) (bool, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return errNotOpen
	}

	g := &graph{projects: CloneProjects(w.projects)}
	changed, err := fn(g)
	if err != nil {
		w.logger.Debug("operation rejected", "op", op, "tenant", w.tenant, "error", err)
		return err
	}
	if !changed {
		return nil
	}

	version, err := w.persistence.Save(ctx, w.tenant, g.projects, w.version)
	if err != nil {
		w.logger.Error("operation not persisted", "op", op, "tenant", w.tenant, "error", err)
		return err
	}
	w.projects = g.projects
	w.version = version
	w.stats = RecomputeStats(g.projects)
	w.logger.Info("operation applied", "op", op, "tenant", w.tenant, "version", version)
	return nil
}

// read runs fn against the live graph under the lock.
func (w *Workspace) read(fn func(g *graph) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return errNotOpen
	}
	return fn(&graph{projects: w.projects})
}

// newID returns a generator id that no project, table or key in the graph uses yet.
func (w *Workspace) newID(g *graph) string {
	for {
		id := w.idgen.New()
		if !g.hasID(id) {
			return id
		}
	}
}

func (g *graph) hasID(id string) bool {
	for _, p := range g.projects {
		if p.ID == id {
			return true
		}
		for _, t := range p.Tables {
			if t.ID == id {
				return true
			}
		}
		for _, k := range p.APIKeys {
			if k.ID == id {
				return true
			}
		}
	}
	return false
}

func rowRef(id int64) string {
	return strconv.FormatInt(id, 10)
}
