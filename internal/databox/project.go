package databox

import (
	"fmt"
	"time"
)

// Region is a deployment region label. The set is closed.
type Region string

const (
	RegionUSEast1  Region = "us-east-1"
	RegionUSWest2  Region = "us-west-2"
	RegionEUWest1  Region = "eu-west-1"
	RegionAPSouth1 Region = "ap-south-1"
)

// DefaultRegion is used when a project is created without a region.
const DefaultRegion = RegionUSEast1

// Regions lists every supported region in display order.
var Regions = []Region{RegionUSEast1, RegionUSWest2, RegionEUWest1, RegionAPSouth1}

var regionNames = map[Region]string{
	RegionUSEast1:  "US East (N. Virginia)",
	RegionUSWest2:  "US West (Oregon)",
	RegionEUWest1:  "Europe (Ireland)",
	RegionAPSouth1: "Asia Pacific (Mumbai)",
}

// Valid reports whether r is a supported region.
func (r Region) Valid() bool {
	_, ok := regionNames[r]
	return ok
}

// DisplayName returns the human readable region name.
func (r Region) DisplayName() string {
	return regionNames[r]
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	StatusActive   ProjectStatus = "active"
	StatusPaused   ProjectStatus = "paused"
	StatusInactive ProjectStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusInactive:
		return true
	}
	return false
}

// OAuthProvider names a supported third-party login provider.
type OAuthProvider string

const (
	OAuthGoogle  OAuthProvider = "google"
	OAuthGitHub  OAuthProvider = "github"
	OAuthDiscord OAuthProvider = "discord"
)

func (p OAuthProvider) Valid() bool {
	switch p {
	case OAuthGoogle, OAuthGitHub, OAuthDiscord:
		return true
	}
	return false
}

// AuthConfig is the per-project end-user authentication settings record.
type AuthConfig struct {
	EnableEmailAuth bool            `json:"enableEmailAuth"`
	EnableMagicLink bool            `json:"enableMagicLink"`
	EnableOAuth     bool            `json:"enableOAuth"`
	OAuthProviders  []OAuthProvider `json:"oauthProviders"`
	JWTSecret       string          `json:"jwtSecret"`
	SessionTimeout  int             `json:"sessionTimeout"` // seconds
}

// StorageBucket is a descriptive file bucket record.
type StorageBucket struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Public           bool      `json:"public"`
	FileSizeLimit    string    `json:"fileSizeLimit"`
	AllowedMimeTypes []string  `json:"allowedMimeTypes"`
	CreatedAt        time.Time `json:"createdAt"`
}

// StorageConfig is the per-project file storage settings record.
type StorageConfig struct {
	Buckets          []StorageBucket `json:"buckets"`
	MaxFileSize      string          `json:"maxFileSize"`
	AllowedMimeTypes []string        `json:"allowedMimeTypes"`
}

// Project is a tenant-owned container for tables, credentials and settings.
// Endpoint URLs are derived from the id at creation and never change.
type Project struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	UserID           TenantID      `json:"userId"`
	Region           Region        `json:"region"`
	Status           ProjectStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	Tables           []*Table      `json:"tables"`
	APIKeys          []APIKey      `json:"apiKeys"`
	DatabaseURL      string        `json:"databaseUrl"`
	RestURL          string        `json:"restUrl"`
	RealtimeURL      string        `json:"realtimeUrl"`
	StorageURL       string        `json:"storageUrl"`
	EdgeFunctionsURL string        `json:"edgeFunctionsUrl"`
	AuthConfig       AuthConfig    `json:"authConfig"`
	StorageConfig    StorageConfig `json:"storageConfig"`
	RLSPolicies      []RLSPolicy   `json:"rlsPolicies"`
}

// Table returns the table with the given id.
func (p *Project) Table(id string) (*Table, bool) {
	for _, t := range p.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// TableByName returns the table with the given name.
func (p *Project) TableByName(name string) (*Table, bool) {
	for _, t := range p.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	out := *p
	out.Tables = nil
	if p.Tables != nil {
		out.Tables = make([]*Table, len(p.Tables))
		for i, t := range p.Tables {
			out.Tables[i] = t.Clone()
		}
	}
	out.APIKeys = nil
	if p.APIKeys != nil {
		out.APIKeys = make([]APIKey, len(p.APIKeys))
		for i, k := range p.APIKeys {
			out.APIKeys[i] = k.Clone()
		}
	}
	out.AuthConfig.OAuthProviders = cloneSlice(p.AuthConfig.OAuthProviders)
	out.StorageConfig.AllowedMimeTypes = cloneSlice(p.StorageConfig.AllowedMimeTypes)
	out.StorageConfig.Buckets = nil
	if p.StorageConfig.Buckets != nil {
		out.StorageConfig.Buckets = make([]StorageBucket, len(p.StorageConfig.Buckets))
		for i, b := range p.StorageConfig.Buckets {
			b.AllowedMimeTypes = cloneSlice(b.AllowedMimeTypes)
			out.StorageConfig.Buckets[i] = b
		}
	}
	out.RLSPolicies = clonePolicies(p.RLSPolicies)
	return &out
}

// CloneProjects deep-copies a project list.
func CloneProjects(projects []*Project) []*Project {
	if projects == nil {
		return nil
	}
	out := make([]*Project, len(projects))
	for i, p := range projects {
		out[i] = p.Clone()
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Endpoints configures how project URLs are derived.
type Endpoints struct {
	Host                string
	DatabaseScheme      string
	DatabaseCredentials string
	DatabasePort        int
}

// DefaultEndpoints returns the hosted databox endpoint layout.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Host:                "databox.co",
		DatabaseScheme:      "mysql",
		DatabaseCredentials: "root:[password]",
		DatabasePort:        3306,
	}
}

// apply fills in the five endpoint strings of p from its id.
func (e Endpoints) apply(p *Project) {
	p.DatabaseURL = fmt.Sprintf("%s://%s@db-%s.%s:%d/%s", e.DatabaseScheme, e.DatabaseCredentials, p.ID, e.Host, e.DatabasePort, p.ID)
	p.RestURL = fmt.Sprintf("https://%s.%s/rest/v1/", p.ID, e.Host)
	p.RealtimeURL = fmt.Sprintf("wss://%s.%s/realtime/v1/websocket", p.ID, e.Host)
	p.StorageURL = fmt.Sprintf("https://%s.%s/storage/v1/", p.ID, e.Host)
	p.EdgeFunctionsURL = fmt.Sprintf("https://%s.%s/functions/v1/", p.ID, e.Host)
}
