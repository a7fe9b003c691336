package report

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVGolden(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteCSV(fs, "out", sampleReport()))

	g := goldie.New(t)
	for name, file := range map[string]string{
		"packaged_csv":      PackagedCSV,
		"non_packaged_csv":  NonPackagedCSV,
		"relationships_csv": RelationshipsCSV,
	} {
		b, err := afero.ReadFile(fs, filepath.Join("out", file))
		require.NoError(t, err)
		g.Assert(t, name, b)
	}
}

func TestWriteCSVRefusesOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join("out", PackagedCSV), []byte("evidence"), 0o644))

	err := WriteCSV(fs, "out", sampleReport())
	require.ErrorContains(t, err, "already exists")

	// The pre-existing file keeps its content.
	b, rerr := afero.ReadFile(fs, filepath.Join("out", PackagedCSV))
	require.NoError(t, rerr)
	require.Equal(t, "evidence", string(b))
}

func TestWriteCSVDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteCSV(fs, "a", sampleReport()))
	require.NoError(t, WriteCSV(fs, "b", sampleReport()))

	for _, file := range []string{PackagedCSV, NonPackagedCSV, RelationshipsCSV} {
		x, err := afero.ReadFile(fs, filepath.Join("a", file))
		require.NoError(t, err)
		y, err := afero.ReadFile(fs, filepath.Join("b", file))
		require.NoError(t, err)
		require.Equal(t, x, y)
	}
}
