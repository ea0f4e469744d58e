package seedlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	in := `# admissions
https://example.edu/admissions

  https://example.edu/tuition  
# duplicate below
https://example.edu/admissions
https://example.edu/library
`
	urls, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.edu/admissions",
		"https://example.edu/tuition",
		"https://example.edu/library",
	}, urls)
}

func TestLoad_MergesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "seed.txt")
	b := filepath.Join(dir, "extra.txt")
	require.NoError(t, os.WriteFile(a, []byte("https://e.edu/a\nhttps://e.edu/b\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("# more\nhttps://e.edu/b\nhttps://e.edu/c\n"), 0o600))

	urls, err := Load(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://e.edu/a", "https://e.edu/b", "https://e.edu/c"}, urls)

	_, err = Load(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	assert.Equal(t, []string{"x", "y", "z"}, Merge([]string{"x", "y"}, []string{" y", "z", ""}))
	assert.Nil(t, Merge())
}
