// Package identity persists the signed-in principal to a profile file under
// the config directory.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/errors"
)

// ProfileFile is the name of the profile file inside the config directory.
const ProfileFile = "profile.yaml"

// Profile is the on-disk record of the signed-in user.
type Profile struct {
	UserID   string `yaml:"user_id"`
	Email    string `yaml:"email,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	SignedAt int64  `yaml:"signed_at"`
}

// Manager loads and stores the profile. The in-memory copy is the source of
// truth after Load; file writes happen on sign-in and sign-out.
type Manager struct {
	path string

	mu      sync.RWMutex
	profile *Profile
}

var _ ports.IdentityPort = (*Manager)(nil)

// NewManager creates a manager storing the profile in the given config
// directory.
func NewManager(configDir string) *Manager {
	return &Manager{path: filepath.Join(configDir, ProfileFile)}
}

// Load reads the profile from disk. A missing file means nobody is signed
// in and is not an error.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewError(errors.CodeStorage, "failed to read profile", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return errors.NewError(errors.CodeStorage, "failed to parse profile", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UserID != "" {
		m.profile = &p
	}
	return nil
}

// CurrentUserID returns the signed-in principal, or false when nobody is
// signed in.
func (m *Manager) CurrentUserID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return "", false
	}
	return m.profile.UserID, true
}

// Email returns the signed-in account's email, or empty when nobody is
// signed in.
func (m *Manager) Email() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return ""
	}
	return m.profile.Email
}

// APIKey returns the stored credential, or empty when nobody is signed in.
func (m *Manager) APIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return ""
	}
	return m.profile.APIKey
}

// SignIn records the principal and persists the profile with owner-only
// permissions.
func (m *Manager) SignIn(userID, email, apiKey string) error {
	if userID == "" {
		return errors.NewError(errors.CodeValidation, "user ID is required", nil)
	}

	p := &Profile{
		UserID:   userID,
		Email:    email,
		APIKey:   apiKey,
		SignedAt: time.Now().UnixMilli(),
	}

	if err := m.save(p); err != nil {
		return err
	}

	m.mu.Lock()
	m.profile = p
	m.mu.Unlock()
	return nil
}

// SignOut forgets the principal and removes the profile file. Local data
// stays on disk untouched.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	m.profile = nil
	m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return errors.NewError(errors.CodeStorage, "failed to remove profile", err)
	}
	return nil
}

func (m *Manager) save(p *Profile) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return errors.NewError(errors.CodeStorage, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "failed to encode profile", err)
	}

	content := fmt.Sprintf("# Moneta Profile\n%s", data)
	if err := os.WriteFile(m.path, []byte(content), 0600); err != nil {
		return errors.NewError(errors.CodeStorage, "failed to write profile", err)
	}
	return nil
}
