package databox

import (
	"encoding/json"

	"github.com/dustin/go-humanize"
)

// DatabaseStats is a projection of a tenant graph.
//
// The usage counters (APICalls, ActiveConnections, RealtimeConnections and
// EdgeFunctionInvocations) are display placeholders. Nothing in databox
// measures them and they are always zero.
type DatabaseStats struct {
	TotalProjects int    `json:"totalProjects"`
	TotalTables   int    `json:"totalTables"`
	TotalRows     int    `json:"totalRows"`
	ActiveKeys    int    `json:"activeKeys"`
	StorageBytes  int64  `json:"storageBytes"`
	StorageUsed   string `json:"storageUsed"`

	APICalls                int `json:"apiCalls"`
	ActiveConnections       int `json:"activeConnections"`
	RealtimeConnections     int `json:"realtimeConnections"`
	EdgeFunctionInvocations int `json:"edgeFunctionInvocations"`
}

// RecomputeStats derives the aggregate for projects. StorageBytes estimates
// storage as the size of the JSON encoding of every row's values.
func RecomputeStats(projects []*Project) DatabaseStats {
	var s DatabaseStats
	s.TotalProjects = len(projects)
	for _, p := range projects {
		s.TotalTables += len(p.Tables)
		for _, t := range p.Tables {
			s.TotalRows += len(t.Rows)
			for _, r := range t.Rows {
				if b, err := json.Marshal(r.Values); err == nil {
					s.StorageBytes += int64(len(b))
				}
			}
		}
		for _, k := range p.APIKeys {
			if k.IsActive {
				s.ActiveKeys++
			}
		}
	}
	s.StorageUsed = humanize.Bytes(uint64(s.StorageBytes))
	return s
}
