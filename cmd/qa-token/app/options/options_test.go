package options

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenOptions_Validate(t *testing.T) {
	o := NewTokenOptions()
	require.NoError(t, o.Complete())
	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.key is required")

	fs := o.Flags().FlagSets["jwt"]
	require.NotNil(t, fs)
	require.NoError(t, fs.Parse([]string{"--jwt.key=" + strings.Repeat("k", 32)}))
	assert.NoError(t, o.Validate())

	o.Subject = ""
	assert.Error(t, o.Validate())
}
