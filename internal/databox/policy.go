package databox

import "time"

// PolicyCommand is the statement class an RLS policy applies to.
type PolicyCommand string

const (
	CommandSelect PolicyCommand = "SELECT"
	CommandInsert PolicyCommand = "INSERT"
	CommandUpdate PolicyCommand = "UPDATE"
	CommandDelete PolicyCommand = "DELETE"
	CommandAll    PolicyCommand = "ALL"
)

func (c PolicyCommand) Valid() bool {
	switch c {
	case CommandSelect, CommandInsert, CommandUpdate, CommandDelete, CommandAll:
		return true
	}
	return false
}

// RLSPolicy is a stored row-level-security policy. Predicates are kept as
// text and never evaluated.
type RLSPolicy struct {
	ID        string        `json:"id"`
	TableName string        `json:"tableName"`
	Name      string        `json:"name"`
	Command   PolicyCommand `json:"command"`
	Roles     []string      `json:"roles"`
	Using     string        `json:"using"`
	WithCheck string        `json:"withCheck,omitempty"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"createdAt"`
}

func clonePolicies(policies []RLSPolicy) []RLSPolicy {
	if policies == nil {
		return nil
	}
	out := make([]RLSPolicy, len(policies))
	for i, p := range policies {
		p.Roles = cloneSlice(p.Roles)
		out[i] = p
	}
	return out
}
