package manager

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conman/internal/audit"
	"conman/internal/launch"
	"conman/internal/models"
	"conman/internal/secret"
	"conman/internal/store"
)

type recordingRunner struct {
	calls []launch.Command
}

func (r *recordingRunner) Run(_ context.Context, c launch.Command) error {
	r.calls = append(r.calls, c)
	return nil
}

type fixture struct {
	m      *Manager
	store  *store.Store
	box    *secret.Box
	runner *recordingRunner
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	box, err := secret.LoadOrCreate(filepath.Join(dir, "key.key"), secret.CipherXChaCha)
	require.NoError(t, err)
	s := store.New(filepath.Join(dir, "connections.json"))
	runner := &recordingRunner{}
	d := &launch.Dispatcher{Secrets: box, Runner: runner, GOOS: "linux"}
	m, err := New(s, box, d, audit.New(filepath.Join(dir, "access.log")))
	require.NoError(t, err)
	return &fixture{m: m, store: s, box: box, runner: runner, dir: dir}
}

func ptr(s string) *string { return &s }

func TestAddEncryptsAndPersists(t *testing.T) {
	f := newFixture(t)
	c, err := f.m.Add(Input{Name: "web", Type: models.KindSSH, Address: "root@web", Password: ptr(" hunter2 ")})
	require.NoError(t, err)

	token := c.PasswordToken()
	require.NotEmpty(t, token)
	assert.NotContains(t, token, "hunter2")
	assert.Equal(t, "hunter2", f.box.Decrypt(token))

	raw, err := os.ReadFile(f.store.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")

	reloaded, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []models.Connection{c}, reloaded)

	pw, err := f.m.Reveal("WEB")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}

func TestListIsSortedAfterEveryMutation(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"bob", "Alice", "charlie"} {
		_, err := f.m.Add(Input{Name: n, Type: models.KindCustom, Command: "echo " + n})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"Alice", "bob", "charlie"}, store.Names(f.m.List()))

	onDisk, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "bob", "charlie"}, store.Names(onDisk))

	_, err = f.m.Edit("alice", Input{Name: "zed", Command: "echo z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "charlie", "zed"}, store.Names(f.m.List()))
}

func TestAddRejectsDuplicateAndInvalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "web", Type: models.KindCustom, Command: "x"})
	require.NoError(t, err)

	_, err = f.m.Add(Input{Name: "WEB", Type: models.KindCustom, Command: "y"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = f.m.Add(Input{Name: "rdp", Type: models.KindRDP})
	assert.ErrorIs(t, err, models.ErrInvalidConnection)

	_, err = f.m.Add(Input{Name: "vnc", Type: "vnc"})
	assert.ErrorIs(t, err, models.ErrInvalidConnection)

	assert.Len(t, f.m.List(), 1)
}

func TestEditKeepsTypeAndPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "desk", Type: models.KindRDP, Address: "10.0.0.5", Username: "bob", Password: ptr("pw")})
	require.NoError(t, err)
	before, err := f.m.Get("desk")
	require.NoError(t, err)

	after, err := f.m.Edit("desk", Input{Name: "desk", Type: models.KindSSH, Address: "10.0.0.6", Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.KindRDP, after.Kind())
	assert.Equal(t, before.PasswordToken(), after.PasswordToken())
	assert.Equal(t, "10.0.0.6", after.Address())

	cleared, err := f.m.Edit("desk", Input{Name: "desk", Address: "10.0.0.6", Password: ptr("")})
	require.NoError(t, err)
	assert.Empty(t, cleared.PasswordToken())
}

func TestEditSSHKeyReplacesPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "web", Type: models.KindSSH, Address: "root@web", Password: ptr("pw")})
	require.NoError(t, err)

	c, err := f.m.Edit("web", Input{Name: "web", Address: "root@web", PrivateKey: "/keys/web"})
	require.NoError(t, err)
	assert.Equal(t, models.SSH{Address: "root@web", PrivateKey: "/keys/web"}, c.Target)
}

func TestEditErrors(t *testing.T) {
	f := newFixture(t)
	for _, n := range []string{"a", "b"} {
		_, err := f.m.Add(Input{Name: n, Type: models.KindCustom, Command: n})
		require.NoError(t, err)
	}
	_, err := f.m.Edit("missing", Input{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.m.Edit("a", Input{Name: "B", Command: "a"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = f.m.Edit("a", Input{Name: "A", Command: "renamed"})
	require.NoError(t, err)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "a", Type: models.KindCustom, Command: "a"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.m.Remove("zzz"), ErrNotFound)
	require.NoError(t, f.m.Remove("A"))
	assert.Empty(t, f.m.List())

	onDisk, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, onDisk)
}

func TestConnectCustomScenario(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "list", Type: models.KindCustom, Command: "ls -la"})
	require.NoError(t, err)

	// A fresh manager over the same files sees the saved record.
	reopened, err := New(f.store, f.box, &launch.Dispatcher{Secrets: f.box, Runner: f.runner, GOOS: "linux"}, nil)
	require.NoError(t, err)
	require.NoError(t, reopened.Connect(context.Background(), "list"))

	require.Len(t, f.runner.calls, 1)
	assert.Equal(t, launch.Command{Name: "sh", Args: []string{"-c", "ls -la"}, Shell: true, Interactive: true}, f.runner.calls[0])
}

func TestConnectPasswordSSHUsesDecryptedSecret(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "web", Type: models.KindSSH, Address: "root@web", Password: ptr("pw")})
	require.NoError(t, err)

	require.NoError(t, f.m.Connect(context.Background(), "web"))
	require.Len(t, f.runner.calls, 1)
	assert.Equal(t, "sshpass", f.runner.calls[0].Name)
	assert.Equal(t, []string{"SSHPASS=pw"}, f.runner.calls[0].Env)

	raw, err := os.ReadFile(filepath.Join(f.dir, "access.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
	assert.NotContains(t, string(raw), "pw\"")
}

func TestConnectUnknown(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.m.Connect(context.Background(), "nope"), ErrNotFound)
	assert.Empty(t, f.runner.calls)
}

func TestPlan(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "desk", Type: models.KindRDP, Address: "h"})
	require.NoError(t, err)
	cmd, err := f.m.Plan("desk")
	require.NoError(t, err)
	assert.Equal(t, "xfreerdp /v:h", cmd.String())
}

func TestImportExport(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "a", Type: models.KindCustom, Command: "old"})
	require.NoError(t, err)

	incoming := []models.Connection{}
	for _, pair := range [][2]string{{"A", "new"}, {"b", "b"}} {
		c, err := models.NewCustom(pair[0], pair[1])
		require.NoError(t, err)
		incoming = append(incoming, c)
	}

	n, err := f.m.Import(incoming, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, err := f.m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, models.Custom{Command: "new"}, got.Target)

	var buf bytes.Buffer
	require.NoError(t, f.m.Export(&buf))
	exported, err := store.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.m.List(), exported)

	n, err = f.m.Import(exported[1:], true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.m.Import(append(incoming, incoming[0]), false)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestImportRequiresSealedPasswords(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Add(Input{Name: "keep", Type: models.KindCustom, Command: "true"})
	require.NoError(t, err)
	before, err := os.ReadFile(f.store.Path)
	require.NoError(t, err)

	plain, err := models.NewRDP("desk", "host", "bob", "hunter2-plaintext")
	require.NoError(t, err)
	_, err = f.m.Import([]models.Connection{plain}, false)
	assert.ErrorIs(t, err, models.ErrInvalidConnection)

	other, err := secret.LoadOrCreate(filepath.Join(t.TempDir(), "other.key"), secret.CipherXChaCha)
	require.NoError(t, err)
	foreignToken, err := other.Encrypt("hunter2")
	require.NoError(t, err)
	foreign, err := models.NewSSH("web", "root@web", "", foreignToken)
	require.NoError(t, err)
	_, err = f.m.Import([]models.Connection{foreign}, true)
	assert.ErrorIs(t, err, models.ErrInvalidConnection)

	after, err := os.ReadFile(f.store.Path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NotContains(t, string(after), "hunter2")
	assert.Equal(t, []string{"keep"}, store.Names(f.m.List()))

	token, err := f.box.Encrypt("hunter2")
	require.NoError(t, err)
	sealed, err := models.NewRDP("desk", "host", "bob", token)
	require.NoError(t, err)
	n, err := f.m.Import([]models.Connection{sealed}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	pw, err := f.m.Reveal("desk")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}

func TestNewSurfacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connections.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err := New(store.New(path), nil, nil, nil)
	assert.ErrorIs(t, err, store.ErrCorruptFile)
}
