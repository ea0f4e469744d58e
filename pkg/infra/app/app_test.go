package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type testOptions struct {
	Addr    string   `mapstructure:"addr"`
	Domains []string `mapstructure:"domains"`

	completed bool
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	var fss cliflag.NamedFlagSets
	fs := fss.FlagSet("test")
	fs.StringVar(&o.Addr, "addr", o.Addr, "listen address")
	fs.StringSliceVar(&o.Domains, "domains", o.Domains, "domains")
	return fss
}

func (o *testOptions) Complete() error { o.completed = true; return nil }
func (o *testOptions) Validate() error { return nil }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestApp_ConfigFile(t *testing.T) {
	opts := &testOptions{Addr: ":1"}
	var ran bool
	a := NewApp(WithName("qa-test"), WithOptions(opts), WithRunFunc(func([]string) error {
		ran = true
		return nil
	}))

	cfg := writeConfig(t, "addr: \":9090\"\ndomains: [\"example.edu\"]\n")
	a.Command().SetArgs([]string{"-c", cfg})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":9090", opts.Addr)
	assert.Equal(t, []string{"example.edu"}, opts.Domains)
}

func TestApp_FlagsOverrideConfig(t *testing.T) {
	opts := &testOptions{}
	a := NewApp(WithName("qa-test"), WithOptions(opts))

	cfg := writeConfig(t, "addr: \":9090\"\ndomains: [\"a.edu\"]\n")
	a.Command().SetArgs([]string{"-c", cfg, "--addr", ":7070", "--domains", "b.edu,c.edu"})
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, ":7070", opts.Addr)
	assert.Equal(t, []string{"b.edu", "c.edu"}, opts.Domains)
}

func TestApp_PositionalArgs(t *testing.T) {
	var got []string
	a := NewApp(WithName("qa-test"), WithNoConfig(), WithRunFunc(func(args []string) error {
		got = args
		return nil
	}))
	a.Command().SetArgs([]string{"seeds.txt", "more.txt"})
	require.NoError(t, a.Command().Execute())
	assert.Equal(t, []string{"seeds.txt", "more.txt"}, got)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("QA_TEST_KEY", "secret")

	assert.Equal(t, "secret", ExpandEnv("${QA_TEST_KEY}"))
	assert.Equal(t, "k=secret", ExpandEnv("k=$QA_TEST_KEY"))
	assert.Equal(t, "${QA_MISSING_KEY}", ExpandEnv("${QA_MISSING_KEY}"))
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "QA_SERVER", EnvPrefix("qa-server"))
}

