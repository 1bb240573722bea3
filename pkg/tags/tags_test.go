package tags

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "e621dl/pkg/errors"
)

func TestParse(t *testing.T) {
	input := `# my tags
[general]
wolf   solo
fox # inline comment

[pools]
123
[General]
dragon
[single-post]
  456  
`
	groups, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, GroupGeneral, groups[0].Type)
	assert.Equal(t, []Tag{{Name: "wolf solo", Line: 3}, {Name: "fox", Line: 4}, {Name: "dragon", Line: 9}}, groups[0].Tags)

	assert.Equal(t, GroupPools, groups[1].Type)
	id, err := groups[1].Tags[0].ID()
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)

	assert.Equal(t, GroupSinglePost, groups[2].Type)
	assert.Equal(t, "456", groups[2].Tags[0].Name)

	assert.Equal(t, 5, Count(groups))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"unknown section", "[general]\nwolf\n[favourites]\n", 3},
		{"tag before section", "# header\nwolf\n", 2},
		{"unterminated header", "[general\n", 1},
		{"non numeric pool", "[pools]\nabc\n", 2},
		{"zero post id", "[single-post]\n0\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	groups, err := Parse(strings.NewReader("# nothing\n\n"))
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestEnsureCreatesTemplateOnce(t *testing.T) {
	fs := afero.NewMemMapFs()

	created, err := Ensure(fs, DefaultFileName)
	require.NoError(t, err)
	assert.True(t, created)

	groups, err := Load(fs, DefaultFileName)
	require.NoError(t, err)
	require.Len(t, groups, 4)
	assert.Zero(t, Count(groups))

	require.NoError(t, afero.WriteFile(fs, DefaultFileName, []byte("[general]\nwolf\n"), 0644))
	created, err = Ensure(fs, DefaultFileName)
	require.NoError(t, err)
	assert.False(t, created)

	groups, err = Load(fs, DefaultFileName)
	require.NoError(t, err)
	assert.Equal(t, 1, Count(groups))
}

func TestLoadErrorsAreConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "missing.txt")
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfig))

	require.NoError(t, afero.WriteFile(fs, "bad.txt", []byte("[nope]\n"), 0644))
	_, err = Load(fs, "bad.txt")
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "line 1")
}

func TestCreateDefaultOnReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := CreateDefault(fs, DefaultFileName)
	assert.True(t, errs.IsType(err, errs.ErrorTypeIO))
}
