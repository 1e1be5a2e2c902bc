package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"databox/internal/databox"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// User is an account as shown to callers. The password hash never leaves
// the provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// Tenant returns the tenant id that owns this user's projects.
func (u *User) Tenant() databox.TenantID {
	return databox.TenantID(u.ID)
}

type account struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// Session is what survives between CLI invocations.
type Session struct {
	UserID          string    `json:"userId"`
	SelectedProject string    `json:"selectedProject,omitempty"`
	LoggedInAt      time.Time `json:"loggedInAt"`
}

// ProfileUpdate carries profile fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

// LocalProvider keeps accounts in a JSON file and the current session in
// another, both under dir:
//
//	<dir>/
//	  users.json
//	  session.json
type LocalProvider struct {
	dir   string
	clock databox.Clock
	idgen databox.IDGenerator
	cost  int
}

var _ databox.IdentityProvider = (*LocalProvider)(nil)

// NewLocalProvider creates a provider rooted at dir. The directory is
// created on first write.
func NewLocalProvider(dir string, clock databox.Clock, idgen databox.IDGenerator) *LocalProvider {
	return &LocalProvider{dir: dir, clock: clock, idgen: idgen, cost: bcrypt.DefaultCost}
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (p *LocalProvider) WithCost(cost int) *LocalProvider {
	p.cost = cost
	return p
}

func (p *LocalProvider) usersPath() string   { return filepath.Join(p.dir, "users.json") }
func (p *LocalProvider) sessionPath() string { return filepath.Join(p.dir, "session.json") }

// AvatarURL returns the generated avatar for a display name.
func AvatarURL(name string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(name)
}

// Register creates an account and logs it in.
func (p *LocalProvider) Register(email, password, name string) (*User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address %q", email)
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}

	accounts, err := p.loadAccounts()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Email == email {
			return nil, fmt.Errorf("%s: %w", email, ErrUserExists)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	a := account{
		User: User{
			ID:        p.idgen.New(),
			Email:     email,
			Name:      name,
			Avatar:    AvatarURL(name),
			CreatedAt: p.clock.Now().UTC(),
		},
		PasswordHash: string(hash),
	}
	accounts = append(accounts, a)
	if err := p.saveAccounts(accounts); err != nil {
		return nil, err
	}
	if err := p.startSession(a.ID); err != nil {
		return nil, err
	}
	u := a.User
	return &u, nil
}

// Login checks the credentials and starts a session.
func (p *LocalProvider) Login(email, password string) (*User, error) {
	accounts, err := p.loadAccounts()
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	for _, a := range accounts {
		if a.Email != email {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		if err := p.startSession(a.ID); err != nil {
			return nil, err
		}
		u := a.User
		return &u, nil
	}
	return nil, ErrInvalidCredentials
}

// Logout ends the session. Logging out twice is not an error.
func (p *LocalProvider) Logout() error {
	if err := os.Remove(p.sessionPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// Current returns the logged-in user, or ErrNotLoggedIn.
func (p *LocalProvider) Current() (*User, error) {
	s, err := p.session()
	if err != nil {
		return nil, err
	}
	accounts, err := p.loadAccounts()
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ID == s.UserID {
			u := a.User
			return &u, nil
		}
	}
	// The account behind the session is gone.
	return nil, ErrNotLoggedIn
}

// CurrentTenant implements databox.IdentityProvider.
func (p *LocalProvider) CurrentTenant() (databox.TenantID, bool) {
	u, err := p.Current()
	if err != nil {
		return "", false
	}
	return u.Tenant(), true
}

// UpdateProfile changes the current user's display fields. Renaming does
// not regenerate the avatar.
func (p *LocalProvider) UpdateProfile(u ProfileUpdate) (*User, error) {
	s, err := p.session()
	if err != nil {
		return nil, err
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	accounts, err := p.loadAccounts()
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		a := &accounts[i]
		if a.ID != s.UserID {
			continue
		}
		if u.Name != nil {
			a.Name = strings.TrimSpace(*u.Name)
		}
		if u.Avatar != nil {
			a.Avatar = strings.TrimSpace(*u.Avatar)
		}
		if err := p.saveAccounts(accounts); err != nil {
			return nil, err
		}
		out := a.User
		return &out, nil
	}
	return nil, ErrNotLoggedIn
}

// SelectedProject returns the project id remembered for the session.
func (p *LocalProvider) SelectedProject() (string, error) {
	s, err := p.session()
	if err != nil {
		return "", err
	}
	return s.SelectedProject, nil
}

// SetSelectedProject remembers projectID for later invocations. An empty id
// clears the selection.
func (p *LocalProvider) SetSelectedProject(projectID string) error {
	s, err := p.session()
	if err != nil {
		return err
	}
	s.SelectedProject = projectID
	return writeJSON(p.sessionPath(), s)
}

func (p *LocalProvider) startSession(userID string) error {
	return writeJSON(p.sessionPath(), &Session{UserID: userID, LoggedInAt: p.clock.Now().UTC()})
}

func (p *LocalProvider) session() (*Session, error) {
	data, err := os.ReadFile(p.sessionPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.UserID == "" {
		return nil, ErrNotLoggedIn
	}
	return &s, nil
}

func (p *LocalProvider) loadAccounts() ([]account, error) {
	data, err := os.ReadFile(p.usersPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading users: %w", err)
	}
	var accounts []account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return accounts, nil
}

func (p *LocalProvider) saveAccounts(accounts []account) error {
	return writeJSON(p.usersPath(), accounts)
}

// writeJSON replaces path through a temp file in the same directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
