package fixture

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Directive
	}{
		{
			name:     "empty",
			input:    "",
			expected: nil,
		},
		{
			name:  "send and expect",
			input: ">set a 1\nOK\n>get a\n1\n",
			expected: []Directive{
				{Kind: Send, Payload: "set a 1", Line: 1},
				{Kind: Expect, Payload: "OK", Line: 2},
				{Kind: Send, Payload: "get a", Line: 3},
				{Kind: Expect, Payload: "1", Line: 4},
			},
		},
		{
			name:  "blank lines are skipped but counted",
			input: "\n>ping\n\n   \npong\n",
			expected: []Directive{
				{Kind: Send, Payload: "ping", Line: 2},
				{Kind: Expect, Payload: "pong", Line: 5},
			},
		},
		{
			name:  "surrounding whitespace is trimmed",
			input: "  >  spaced  \r\n\tvalue\t\r\n",
			expected: []Directive{
				{Kind: Send, Payload: "  spaced", Line: 1},
				{Kind: Expect, Payload: "value", Line: 2},
			},
		},
		{
			name:  "bare prefix sends an empty line",
			input: ">\n",
			expected: []Directive{
				{Kind: Send, Payload: "", Line: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directives, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, directives)
		})
	}
}

func TestDirectiveBytes(t *testing.T) {
	assert.Equal(t, []byte("get a\n"), Directive{Kind: Send, Payload: "get a"}.Bytes())
	assert.Equal(t, []byte("héllo"), Directive{Kind: Expect, Payload: "héllo"}.Bytes())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "send", Send.String())
	assert.Equal(t, "expect", Expect.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}

func TestReaderStreamsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basic")
	require.NoError(t, os.WriteFile(path, []byte(">a\nb\n"), 0644))

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	d, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, Send, d.Kind)

	d, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, Expect, d.Kind)

	_, err = rd.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	assert.True(t, Exists(file))
	assert.False(t, Exists(dir), "directories are not fixtures")
	assert.False(t, Exists(filepath.Join(dir, "nope")))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte(">x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte(">y\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c"), []byte(">z\n"), 0644))

	paths, err := Discover(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b")}, paths)
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only"), nil, 0644))

	t.Run("args win", func(t *testing.T) {
		paths, err := Resolve([]string{"x", "y"}, []string{"m"}, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, paths)
	})

	t.Run("manifest before directory", func(t *testing.T) {
		paths, err := Resolve(nil, []string{"m"}, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"m"}, paths)
	})

	t.Run("default directory", func(t *testing.T) {
		paths, err := Resolve(nil, nil, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "only")}, paths)
	})
}
