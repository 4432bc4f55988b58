package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServerOptions struct {
	Addr  string `mapstructure:"addr"`
	Level string `mapstructure:"level"`
	Name  string `mapstructure:"name"`

	completed bool
	validErr  error
}

func (o *testServerOptions) Flags() (fss NamedFlagSets) {
	fs := fss.FlagSet("server")
	fs.StringVar(&o.Addr, "addr", o.Addr, "listen address")
	fs.StringVar(&o.Level, "level", o.Level, "log level")
	fs.StringVar(&o.Name, "name", o.Name, "service name")
	return fss
}

func (o *testServerOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testServerOptions) Validate() error { return o.validErr }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNamedFlagSets_Order(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("http")
	fss.FlagSet("log")
	fss.FlagSet("http")

	assert.Equal(t, []string{"http", "log"}, fss.Order)
	assert.Len(t, fss.FlagSets, 2)
}

func TestApp_ConfigFileAndFlagPrecedence(t *testing.T) {
	path := writeConfig(t, "addr: \":9000\"\nlevel: debug\nname: fromfile\n")

	opts := &testServerOptions{Addr: ":8000", Level: "info"}
	ran := false
	a := NewApp(
		WithName("docqa-apptest"),
		WithOptions(opts),
		WithNoVersion(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--config", path, "--level", "warn"})
	require.NoError(t, cmd.Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":9000", opts.Addr)
	assert.Equal(t, "warn", opts.Level, "explicit flag wins over config file")
	assert.Equal(t, "fromfile", opts.Name)
}

func TestApp_EnvOverridesConfig(t *testing.T) {
	path := writeConfig(t, "addr: \":9000\"\n")
	t.Setenv("DOCQA_APPTEST_ADDR", ":7000")

	opts := &testServerOptions{}
	a := NewApp(WithName("docqa-apptest"), WithOptions(opts), WithNoVersion())
	cmd := a.Command()
	cmd.SetArgs([]string{"-c", path})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, ":7000", opts.Addr)
}

func TestApp_ExpandEnvVars(t *testing.T) {
	t.Setenv("APPTEST_NAME", "expanded")
	path := writeConfig(t, "name: \"${APPTEST_NAME}\"\nlevel: \"$APPTEST_MISSING\"\n")

	opts := &testServerOptions{}
	a := NewApp(WithName("docqa-apptest"), WithOptions(opts), WithNoVersion())
	cmd := a.Command()
	cmd.SetArgs([]string{"-c", path})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "expanded", opts.Name)
	assert.Equal(t, "$APPTEST_MISSING", opts.Level)
}

func TestApp_ValidateError(t *testing.T) {
	opts := &testServerOptions{validErr: errors.New("bad options")}
	ran := false
	a := NewApp(
		WithName("docqa-apptest"),
		WithOptions(opts),
		WithNoVersion(),
		WithSilence(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	cmd := a.Command()
	cmd.SetArgs([]string{"-c", writeConfig(t, "addr: x\n")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad options")
	assert.False(t, ran)
}

func TestApp_MissingConfigFileIsError(t *testing.T) {
	opts := &testServerOptions{}
	a := NewApp(WithName("docqa-apptest"), WithOptions(opts), WithNoVersion(), WithSilence())
	cmd := a.Command()
	cmd.SetArgs([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, cmd.Execute())
}

func TestWatcher_NotifyRunsHandlersInOrder(t *testing.T) {
	w := NewWatcher(viper.New())
	var calls []string
	w.Subscribe("b", func(*viper.Viper) error {
		calls = append(calls, "b")
		return nil
	})
	w.Subscribe("a", func(*viper.Viper) error {
		calls = append(calls, "a")
		return errors.New("ignored")
	})
	assert.Equal(t, 2, w.HandlerCount())

	w.Notify()
	assert.Equal(t, []string{"a", "b"}, calls)

	w.Unsubscribe("a")
	assert.Equal(t, 1, w.HandlerCount())
	assert.False(t, w.IsWatching())
}

func TestExpandString(t *testing.T) {
	t.Setenv("APPTEST_HOST", "db.local")
	assert.Equal(t, "db.local:5432", expandString("${APPTEST_HOST}:5432"))
	assert.Equal(t, "db.local", expandString("$APPTEST_HOST"))
	assert.Equal(t, "${APPTEST_NOPE}", expandString("${APPTEST_NOPE}"))
}

func TestBuildFields(t *testing.T) {
	fields := BuildFields()
	require.Len(t, fields, 10)
	assert.Equal(t, "version", fields[0])
	assert.Equal(t, GetVersion(), fields[1])
	for i := 0; i < len(fields); i += 2 {
		assert.IsType(t, "", fields[i], "键必须是字符串")
	}
}
