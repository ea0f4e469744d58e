package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	key := strings.Repeat("k", MinKeyLength)
	tests := []struct {
		name   string
		mutate func(*Options)
		errs   int
	}{
		{"disabled skips checks", func(o *Options) { o.DisableAuth = true }, 0},
		{"missing key", func(o *Options) {}, 1},
		{"short key", func(o *Options) { o.Key = "secret" }, 1},
		{"valid", func(o *Options) { o.Key = key }, 0},
		{"rsa and zero lifetime", func(o *Options) {
			o.Key, o.SigningMethod, o.Expired = key, "RS256", 0
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.Len(t, o.Validate(), tt.errs)
		})
	}
}

func TestComplete(t *testing.T) {
	o := &Options{}
	require.NoError(t, o.Complete())
	assert.Equal(t, DefaultSigningMethod, o.SigningMethod)
	assert.Equal(t, DefaultExpired, o.Expired)
	assert.Equal(t, DefaultIssuer, o.Issuer)
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--jwt.key=abc", "--jwt.expired=1h", "--jwt.audience=admin"}))
	assert.Equal(t, "abc", o.Key)
	assert.Equal(t, time.Hour, o.Expired)
	assert.Equal(t, []string{"admin"}, o.Audience)
}
