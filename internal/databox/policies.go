package databox

import (
	"context"
	"strings"
)

// PolicyInput describes a new RLS policy.
type PolicyInput struct {
	Name      string
	Command   PolicyCommand
	Roles     []string
	Using     string
	WithCheck string
}

// CreatePolicy stores a policy on a table, or on the project when tableID is empty.
// Policies start enabled.
func (w *Workspace) CreatePolicy(ctx context.Context, projectID, tableID string, in PolicyInput) (*RLSPolicy, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "policy name is required")
	}
	if in.Command == "" {
		in.Command = CommandAll
	}
	if !in.Command.Valid() {
		return nil, invalid("command", "unknown command %q", in.Command)
	}
	if strings.TrimSpace(in.Using) == "" {
		return nil, invalid("using", "using expression is required")
	}
	roles := cloneSlice(in.Roles)
	if len(roles) == 0 {
		roles = []string{"authenticated"}
	}

	var created RLSPolicy
	err := w.mutate(ctx, "CreatePolicy", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		now := w.clock.Now().UTC()
		created = RLSPolicy{
			ID:        w.idgen.New(),
			Name:      in.Name,
			Command:   in.Command,
			Roles:     roles,
			Using:     in.Using,
			WithCheck: in.WithCheck,
			Enabled:   true,
			CreatedAt: now,
		}
		if tableID == "" {
			p.RLSPolicies = append(p.RLSPolicies, created)
		} else {
			t, ok := p.Table(tableID)
			if !ok {
				return false, &NotFoundError{Kind: "table", ID: tableID}
			}
			created.TableName = t.Name
			t.Policies = append(t.Policies, created)
			t.UpdatedAt = now
		}
		p.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	out := clonePolicies([]RLSPolicy{created})[0]
	return &out, nil
}

// SetPolicyEnabled enables or disables a policy wherever it is attached.
func (w *Workspace) SetPolicyEnabled(ctx context.Context, projectID, policyID string, enabled bool) error {
	return w.mutate(ctx, "SetPolicyEnabled", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		pol := findPolicy(p, policyID)
		if pol == nil {
			return false, &NotFoundError{Kind: "policy", ID: policyID}
		}
		if pol.Enabled == enabled {
			return false, nil
		}
		pol.Enabled = enabled
		p.UpdatedAt = w.clock.Now().UTC()
		return true, nil
	})
}

// DeletePolicy removes a policy wherever it is attached.
func (w *Workspace) DeletePolicy(ctx context.Context, projectID, policyID string) error {
	return w.mutate(ctx, "DeletePolicy", func(g *graph) (bool, error) {
		p, err := g.project(projectID)
		if err != nil {
			return false, err
		}
		if removePolicy(&p.RLSPolicies, policyID) {
			p.UpdatedAt = w.clock.Now().UTC()
			return true, nil
		}
		for _, t := range p.Tables {
			if removePolicy(&t.Policies, policyID) {
				p.UpdatedAt = w.clock.Now().UTC()
				return true, nil
			}
		}
		return false, &NotFoundError{Kind: "policy", ID: policyID}
	})
}

// ListPolicies returns the project-level policies followed by every table's policies.
func (w *Workspace) ListPolicies(projectID string) ([]RLSPolicy, error) {
	var out []RLSPolicy
	err := w.read(func(g *graph) error {
		p, err := g.project(projectID)
		if err != nil {
			return err
		}
		out = clonePolicies(p.RLSPolicies)
		for _, t := range p.Tables {
			out = append(out, clonePolicies(t.Policies)...)
		}
		return nil
	})
	return out, err
}

func findPolicy(p *Project, id string) *RLSPolicy {
	for i := range p.RLSPolicies {
		if p.RLSPolicies[i].ID == id {
			return &p.RLSPolicies[i]
		}
	}
	for _, t := range p.Tables {
		for i := range t.Policies {
			if t.Policies[i].ID == id {
				return &t.Policies[i]
			}
		}
	}
	return nil
}

func removePolicy(policies *[]RLSPolicy, id string) bool {
	for i, pol := range *policies {
		if pol.ID == id {
			*policies = append((*policies)[:i], (*policies)[i+1:]...)
			return true
		}
	}
	return false
}
