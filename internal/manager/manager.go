// Package manager holds the connection list in memory and persists it after
// every change. The CLI, the TUI and the HTTP API all go through it.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"conman/internal/audit"
	"conman/internal/launch"
	"conman/internal/logging"
	"conman/internal/models"
	"conman/internal/store"
)

var (
	// ErrNotFound means no connection has the given name.
	ErrNotFound = errors.New("connection not found")
	// ErrDuplicateName means another connection already uses the name (case-insensitively).
	ErrDuplicateName = errors.New("connection name already in use")
)

// Secrets encrypts and decrypts password fields. *secret.Box satisfies it.
type Secrets interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) string
	Verify(token string) error
}

// Input carries user-entered fields. Password is plaintext; nil keeps the stored
// password on edit, a pointer to "" clears it.
type Input struct {
	Name       string
	Type       models.Kind
	Address    string
	PrivateKey string
	Password   *string
	Username   string
	Command    string
}

// Manager is safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	store      *store.Store
	secrets    Secrets
	dispatcher *launch.Dispatcher
	audit      *audit.Log
	records    []models.Connection
}

// New loads the store. A corrupt file is returned as an error and left untouched.
func New(s *store.Store, secrets Secrets, d *launch.Dispatcher, a *audit.Log) (*Manager, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:      s,
		secrets:    secrets,
		dispatcher: d,
		audit:      a,
		records:    store.Sorted(records),
	}, nil
}

// List returns the connections sorted by name.
func (m *Manager) List() []models.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Connection, len(m.records))
	copy(out, m.records)
	return out
}

// Get finds a connection by name.
func (m *Manager) Get(name string) (models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := store.IndexOf(m.records, name)
	if idx < 0 {
		return models.Connection{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return m.records[idx], nil
}

// Reveal returns the decrypted password of name, "" when there is none or it cannot be opened.
func (m *Manager) Reveal(name string) (string, error) {
	c, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return m.secrets.Decrypt(c.PasswordToken()), nil
}

// Add creates a connection.
func (m *Manager) Add(in Input) (models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if store.IndexOf(m.records, in.Name) >= 0 {
		return models.Connection{}, fmt.Errorf("%w: %s", ErrDuplicateName, strings.TrimSpace(in.Name))
	}
	c, err := m.build(in, "")
	if err != nil {
		return models.Connection{}, err
	}
	records, err := store.Upsert(m.copyRecords(), store.NoIndex, c)
	if err != nil {
		return models.Connection{}, err
	}
	if err := m.commit(records); err != nil {
		return models.Connection{}, err
	}
	logging.Component("manager").Info().Str("name", c.Name).Str("type", string(c.Kind())).Msg("connection added")
	return c, nil
}

// Edit replaces the connection called name. The type never changes; in.Type is ignored.
func (m *Manager) Edit(name string, in Input) (models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := store.IndexOf(m.records, name)
	if idx < 0 {
		return models.Connection{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	old := m.records[idx]
	if other := store.IndexOf(m.records, in.Name); other >= 0 && other != idx {
		return models.Connection{}, fmt.Errorf("%w: %s", ErrDuplicateName, strings.TrimSpace(in.Name))
	}
	in.Type = old.Kind()
	c, err := m.build(in, old.PasswordToken())
	if err != nil {
		return models.Connection{}, err
	}
	records, err := store.Upsert(m.copyRecords(), idx, c)
	if err != nil {
		return models.Connection{}, err
	}
	if err := m.commit(records); err != nil {
		return models.Connection{}, err
	}
	logging.Component("manager").Info().Str("name", c.Name).Str("was", old.Name).Msg("connection updated")
	return c, nil
}

// Remove deletes the connection called name.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := store.IndexOf(m.records, name)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := m.commit(store.Remove(m.copyRecords(), idx)); err != nil {
		return err
	}
	logging.Component("manager").Info().Str("name", name).Msg("connection removed")
	return nil
}

// Import merges records into the list, or replaces it when replace is set.
// Duplicate names inside records are rejected, and so is any password that is
// not a token sealed with this key file; nothing is written in either case.
func (m *Manager) Import(records []models.Connection, replace bool) (int, error) {
	seen := make(map[string]bool, len(records))
	for _, c := range records {
		if err := c.Validate(); err != nil {
			return 0, err
		}
		if token := c.PasswordToken(); token != "" {
			if err := m.secrets.Verify(token); err != nil {
				return 0, fmt.Errorf("%w: %s: password is not sealed with this key file: %v", models.ErrInvalidConnection, c.Name, err)
			}
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateName, c.Name)
		}
		seen[key] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.commit(store.Merge(m.records, records, replace)); err != nil {
		return 0, err
	}
	logging.Component("manager").Info().Int("imported", len(records)).Bool("replace", replace).Msg("connections imported")
	return len(m.records), nil
}

// Export writes the stored list, password tokens included.
func (m *Manager) Export(w io.Writer) error {
	return store.Export(w, m.List())
}

// Plan returns the command Connect would run for name.
func (m *Manager) Plan(name string) (launch.Command, error) {
	c, err := m.Get(name)
	if err != nil {
		return launch.Command{}, err
	}
	return m.dispatcher.Plan(c)
}

// Connect launches name with the manager's dispatcher.
func (m *Manager) Connect(ctx context.Context, name string) error {
	return m.ConnectWith(ctx, name, m.dispatcher)
}

// ConnectWith launches name with d, e.g. a dispatcher using the attached runner.
func (m *Manager) ConnectWith(ctx context.Context, name string, d *launch.Dispatcher) error {
	c, err := m.Get(name)
	if err != nil {
		return err
	}
	mode := "detached"
	switch d.Runner.(type) {
	case launch.Attached:
		mode = "attached"
	case launch.Terminal:
		mode = "terminal"
	}
	started := time.Now()
	m.audit.ConnectStart(c, mode)
	err = d.Dispatch(ctx, c)
	m.audit.ConnectDone(c, started, err)
	return err
}

func (m *Manager) copyRecords() []models.Connection {
	out := make([]models.Connection, len(m.records))
	copy(out, m.records)
	return out
}

// commit saves records and adopts them, sorted, as the in-memory list.
func (m *Manager) commit(records []models.Connection) error {
	sorted := store.Sorted(records)
	if err := m.store.Save(sorted); err != nil {
		return fmt.Errorf("saving connections: %w", err)
	}
	m.records = sorted
	return nil
}

func (m *Manager) build(in Input, oldToken string) (models.Connection, error) {
	token := oldToken
	if in.Password != nil {
		token = ""
		if pw := strings.TrimSpace(*in.Password); pw != "" {
			enc, err := m.secrets.Encrypt(pw)
			if err != nil {
				return models.Connection{}, fmt.Errorf("encrypting password: %w", err)
			}
			token = enc
		}
	}
	switch in.Type {
	case models.KindSSH:
		if strings.TrimSpace(in.PrivateKey) != "" {
			token = ""
		}
		return models.NewSSH(in.Name, in.Address, in.PrivateKey, token)
	case models.KindRDP:
		return models.NewRDP(in.Name, in.Address, in.Username, token)
	case models.KindCustom:
		return models.NewCustom(in.Name, in.Command)
	}
	return models.Connection{}, fmt.Errorf("%w: unknown type %q", models.ErrInvalidConnection, in.Type)
}
