package databox_test

import (
	"context"
	"errors"
	"testing"

	"databox/internal/databox"
	"databox/internal/testutil"
)

func intPtr(n int) *int { return &n }

// productColumns is the schema id:int pk autoinc, name:varchar required, price:decimal.
func productColumns() []databox.Column {
	return []databox.Column{
		{Name: "id", Type: databox.TypeInt, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: databox.TypeVarchar, Length: intPtr(255), Required: true},
		{Name: "price", Type: databox.TypeDecimal},
	}
}

func mustCreateProject(t *testing.T, w *databox.Workspace, name string) *databox.Project {
	t.Helper()
	p, err := w.CreateProject(context.Background(), name, "", databox.RegionUSEast1)
	if err != nil {
		t.Fatalf("CreateProject(%q) error = %v", name, err)
	}
	return p
}

func mustListProjects(t *testing.T, w *databox.Workspace) []*databox.Project {
	t.Helper()
	projects, err := w.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	return projects
}

func mustCreateTable(t *testing.T, w *databox.Workspace, projectID, name string, cols []databox.Column) *databox.Table {
	t.Helper()
	tbl, err := w.CreateTable(context.Background(), projectID, name, cols)
	if err != nil {
		t.Fatalf("CreateTable(%q) error = %v", name, err)
	}
	return tbl
}

func TestWorkspace_ShopScenario(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	w := env.Workspace
	ctx := context.Background()

	shop := mustCreateProject(t, w, "Shop")
	if shop.Region != databox.RegionUSEast1 {
		t.Errorf("Region = %q, want %q", shop.Region, databox.RegionUSEast1)
	}
	products := mustCreateTable(t, w, shop.ID, "products", productColumns())

	first, err := w.AddRow(ctx, shop.ID, products.ID, map[string]any{"name": "Widget", "price": 9.99})
	if err != nil {
		t.Fatalf("AddRow() error = %v", err)
	}
	want := map[string]databox.Value{
		"id":    databox.IntValue(1),
		"name":  databox.TextValue("Widget"),
		"price": databox.DecimalValue("9.99"),
	}
	for col, v := range want {
		if got := first.Get(col); got != v {
			t.Errorf("first row %s = %#v, want %#v", col, got, v)
		}
	}

	second, err := w.AddRow(ctx, shop.ID, products.ID, map[string]any{"name": "Gadget", "price": "19.50"})
	if err != nil {
		t.Fatalf("AddRow() error = %v", err)
	}
	if got := second.Get("id"); got != databox.IntValue(2) {
		t.Errorf("second row id = %v, want 2", got)
	}

	if err := w.DeleteRow(ctx, shop.ID, products.ID, 0); err != nil {
		t.Fatalf("DeleteRow() error = %v", err)
	}
	tbl, err := w.GetTable(shop.ID, products.ID)
	if err != nil {
		t.Fatalf("GetTable() error = %v", err)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(tbl.Rows))
	}
	if got := tbl.Rows[0].Get("id"); got != databox.IntValue(2) {
		t.Errorf("row at position 0 has id %v, want 2", got)
	}

	keys, err := w.ListKeys(shop.ID)
	if err != nil {
		t.Fatalf("ListKeys() error = %v", err)
	}
	var service databox.APIKey
	for _, k := range keys {
		if k.Type == databox.KeyServiceRole {
			service = k
		}
	}
	if err := w.RevokeKey(ctx, shop.ID, service.ID); err != nil {
		t.Fatalf("RevokeKey() error = %v", err)
	}
	keys, _ = w.ListKeys(shop.ID)
	for _, k := range keys {
		if k.ID != service.ID {
			continue
		}
		if k.IsActive {
			t.Error("service_role key still active after revoke")
		}
		if k.Key != service.Key {
			t.Errorf("key string changed on revoke: %q -> %q", service.Key, k.Key)
		}
	}

	stats := w.Stats()
	if stats.TotalTables != 1 || stats.TotalRows != 1 {
		t.Errorf("stats = {tables: %d, rows: %d}, want {1, 1}", stats.TotalTables, stats.TotalRows)
	}
	if stats.ActiveKeys != 1 {
		t.Errorf("ActiveKeys = %d, want 1", stats.ActiveKeys)
	}
}

func TestWorkspace_NotOpen(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	w := env.Workspace
	w.Close()

	if _, err := w.CreateProject(context.Background(), "Shop", "", ""); err == nil {
		t.Error("CreateProject() on closed workspace should fail")
	}
	if err := w.SelectProject(""); err == nil {
		t.Error("SelectProject() on closed workspace should fail")
	}
	if _, err := w.ListProjects(); err == nil {
		t.Error("ListProjects() on closed workspace should fail")
	}
}

func TestWorkspace_ReopenLoadsPersistedGraph(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	w := env.Workspace
	ctx := context.Background()

	shop := mustCreateProject(t, w, "Shop")
	products := mustCreateTable(t, w, shop.ID, "products", productColumns())
	if _, err := w.AddRow(ctx, shop.ID, products.ID, map[string]any{"name": "Widget"}); err != nil {
		t.Fatalf("AddRow() error = %v", err)
	}
	version := w.Version()

	other := testutil.NewTestWorkspaceOn(t, env.Backing, testutil.TestTenant)
	if other.Workspace.Version() != version {
		t.Errorf("reopened Version() = %d, want %d", other.Workspace.Version(), version)
	}
	got, err := other.Workspace.GetTable(shop.ID, products.ID)
	if err != nil {
		t.Fatalf("GetTable() after reopen error = %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0].Get("name") != databox.TextValue("Widget") {
		t.Errorf("reopened rows = %+v, want one Widget row", got.Rows)
	}
}

func TestWorkspace_TenantsAreIsolated(t *testing.T) {
	alice := testutil.NewTestWorkspace(t)
	mustCreateProject(t, alice.Workspace, "Alice Shop")

	bob := testutil.NewTestWorkspaceOn(t, alice.Backing, "user-2")
	if got := mustListProjects(t, bob.Workspace); len(got) != 0 {
		t.Errorf("bob sees %d projects, want 0", len(got))
	}
	if got := mustListProjects(t, alice.Workspace); len(got) != 1 {
		t.Errorf("alice sees %d projects, want 1", len(got))
	}
}

func TestWorkspace_RollbackOnFailedSave(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	w := env.Workspace
	ctx := context.Background()

	shop := mustCreateProject(t, w, "Shop")
	version := w.Version()

	env.Store.FailAllPuts(true)
	_, err := w.CreateTable(ctx, shop.ID, "products", productColumns())
	if !errors.Is(err, databox.ErrPersistence) {
		t.Fatalf("CreateTable() error = %v, want ErrPersistence", err)
	}
	if w.Version() != version {
		t.Errorf("Version() = %d after failed save, want %d", w.Version(), version)
	}
	p, err := w.GetProject(shop.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if len(p.Tables) != 0 {
		t.Errorf("failed CreateTable left %d tables in memory", len(p.Tables))
	}

	env.Store.FailAllPuts(false)
	if _, err := w.CreateTable(ctx, shop.ID, "products", productColumns()); err != nil {
		t.Fatalf("CreateTable() after recovery error = %v", err)
	}
}

func TestWorkspace_RetriesTransientStoreFailures(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	w := env.Workspace

	env.Store.FailNextPuts(2)
	before := env.Store.Puts()
	if _, err := w.CreateProject(context.Background(), "Shop", "", ""); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if got := env.Store.Puts() - before; got != 3 {
		t.Errorf("Put called %d times, want 3", got)
	}
	if w.Version() != 1 {
		t.Errorf("Version() = %d, want 1", w.Version())
	}
}

func TestWorkspace_StaleVersionRejected(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	first := env.Workspace
	second := testutil.NewTestWorkspaceOn(t, env.Backing, testutil.TestTenant).Workspace

	mustCreateProject(t, first, "From first")

	_, err := second.CreateProject(context.Background(), "From second", "", "")
	if !errors.Is(err, databox.ErrStaleVersion) {
		t.Fatalf("CreateProject() error = %v, want ErrStaleVersion", err)
	}
	if !errors.Is(err, databox.ErrPersistence) {
		t.Errorf("CreateProject() error = %v, want it wrapped as ErrPersistence", err)
	}
	if len(mustListProjects(t, second)) != 0 {
		t.Error("rejected project is visible in the second workspace")
	}

	if err := second.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := second.CreateProject(context.Background(), "From second", "", ""); err != nil {
		t.Fatalf("CreateProject() after reload error = %v", err)
	}
	if got := len(mustListProjects(t, second)); got != 2 {
		t.Errorf("ListProjects() = %d projects, want 2", got)
	}
}

func TestWorkspace_SaveTimeout(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	env.Store.Block(true)

	_, err := env.Workspace.CreateProject(context.Background(), "Shop", "", "")
	var perr *databox.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("CreateProject() error = %v, want *PersistenceError", err)
	}
	if !perr.Timeout() {
		t.Errorf("Timeout() = false for %v", perr)
	}
	if perr.Op != "save" {
		t.Errorf("Op = %q, want save", perr.Op)
	}
}

func TestWorkspace_NoWriteWhenUnchanged(t *testing.T) {
	env := testutil.NewTestWorkspace(t)
	w := env.Workspace
	ctx := context.Background()

	shop := mustCreateProject(t, w, "Shop")
	products := mustCreateTable(t, w, shop.ID, "products", productColumns())

	before := env.Store.Puts()
	if err := w.ToggleRLS(ctx, shop.ID, products.ID, false); err != nil {
		t.Fatalf("ToggleRLS() error = %v", err)
	}
	if err := w.DeleteTable(ctx, shop.ID, "no-such-table"); err != nil {
		t.Fatalf("DeleteTable() of unknown table error = %v", err)
	}
	if got := env.Store.Puts() - before; got != 0 {
		t.Errorf("no-op operations wrote %d times", got)
	}
}

func TestTenantFrom(t *testing.T) {
	tests := []struct {
		name    string
		idp     databox.IdentityProvider
		want    databox.TenantID
		wantErr bool
	}{
		{name: "signed in", idp: staticIdentity{tenant: "user-1", ok: true}, want: "user-1"},
		{name: "signed out", idp: staticIdentity{}, wantErr: true},
		{name: "empty tenant", idp: staticIdentity{ok: true}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := databox.TenantFrom(tt.idp)
			if tt.wantErr {
				if !errors.Is(err, databox.ErrNoTenant) {
					t.Errorf("TenantFrom() error = %v, want ErrNoTenant", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("TenantFrom() = (%q, %v), want (%q, nil)", got, err, tt.want)
			}
		})
	}
}

type staticIdentity struct {
	tenant databox.TenantID
	ok     bool
}

func (s staticIdentity) CurrentTenant() (databox.TenantID, bool) { return s.tenant, s.ok }
