package launch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalWrap(t *testing.T) {
	ssh := Command{Name: "ssh", Args: []string{"-i", "/keys/web", "root@web"}, Interactive: true}
	tests := []struct {
		name string
		term Terminal
		want Command
	}{
		{
			name: "linux default emulator",
			term: Terminal{GOOS: "linux"},
			want: Command{Name: "x-terminal-emulator", Args: []string{"-e", "ssh", "-i", "/keys/web", "root@web"}},
		},
		{
			name: "configured emulator",
			term: Terminal{GOOS: "freebsd", Emulator: "alacritty"},
			want: Command{Name: "alacritty", Args: []string{"-e", "ssh", "-i", "/keys/web", "root@web"}},
		},
		{
			name: "windows",
			term: Terminal{GOOS: "windows"},
			want: Command{Name: "cmd", Args: []string{"/C", "start", "", "ssh", "-i", "/keys/web", "root@web"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.term.Wrap(ssh)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminalWrapKeepsEnv(t *testing.T) {
	c := Command{Name: "sshpass", Args: []string{"-e", "ssh", "root@web"}, Env: []string{"SSHPASS=pw"}, Interactive: true}
	got, err := Terminal{GOOS: "linux"}.Wrap(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"SSHPASS=pw"}, got.Env)
	assert.NotContains(t, strings.Join(got.Args, " "), "pw")
}

func TestTerminalWrapDarwinScript(t *testing.T) {
	dir := t.TempDir()
	c := Command{Name: "sshpass", Args: []string{"-e", "ssh", "o'neil@web"}, Env: []string{"SSHPASS=it's"}, Interactive: true}
	got, err := Terminal{GOOS: "darwin", ScriptDir: dir}.Wrap(c)
	require.NoError(t, err)

	assert.Equal(t, "osascript", got.Name)
	assert.Empty(t, got.Env)
	assert.NotContains(t, strings.Join(got.Args, " "), "it's")

	scripts, err := filepath.Glob(filepath.Join(dir, "conman-*.command"))
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Contains(t, strings.Join(got.Args, "\n"), `do script "/bin/sh '`+scripts[0]+`'"`)

	st, err := os.Stat(scripts[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), st.Mode().Perm())

	data, err := os.ReadFile(scripts[0])
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\nrm -f -- \"$0\"\nexport SSHPASS='it'\\''s'\nexec 'sshpass' '-e' 'ssh' 'o'\\''neil@web'\n", string(data))
}

func TestTerminalScriptRuns(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	c := Command{Name: "sh", Args: []string{"-c", `printf %s "$SECRET" > "$1"`, "sh", marker}, Env: []string{"SECRET=s3"}}
	wrapped, err := Terminal{GOOS: "darwin", ScriptDir: dir}.Wrap(c)
	require.NoError(t, err)

	scripts, err := filepath.Glob(filepath.Join(dir, "conman-*.command"))
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	require.NotEmpty(t, wrapped.Args)

	require.NoError(t, Attached{}.Run(context.Background(), Command{Name: "/bin/sh", Args: []string{scripts[0]}}))
	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "s3", string(data))
	_, err = os.Stat(scripts[0])
	assert.True(t, os.IsNotExist(err), "script removes itself")
}

func TestTerminalStartsGUIClientsDirectly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	marker := filepath.Join(t.TempDir(), "done")
	// A non-interactive command would fail to start if it were wrapped in the missing emulator.
	term := Terminal{GOOS: "linux", Emulator: "conman-no-such-terminal"}
	err := term.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "touch \"$1\"", "sh", marker}})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	err = term.Run(context.Background(), Command{Name: "ssh", Args: []string{"root@web"}, Interactive: true})
	assert.ErrorIs(t, err, ErrSpawn)
}
