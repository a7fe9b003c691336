package report

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cybersundae/capam/pkg/consent"
	"github.com/cybersundae/capam/pkg/sqlite"
)

func jsonReport() *consent.Report {
	rep := sampleReport()
	rep.WAL = "CapabilityAccessManager.db-wal"
	rep.Packaged = rep.Packaged[:1]
	rep.NonPackaged = []consent.UsageRecord{}
	rep.Relationships = []consent.IdentityRelationship{}
	rep.Warnings = []sqlite.Warning{
		{Code: sqlite.WarnEmptyWAL, Detail: "wal contains no committed transaction, using base image unchanged"},
	}
	return rep
}

func TestWriteJSONGolden(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteJSON(fs, "out", jsonReport()))

	b, err := afero.ReadFile(fs, filepath.Join("out", JSONFile))
	require.NoError(t, err)
	goldie.New(t).Assert(t, "report_json", b)
}

func TestWriteJSONRefusesOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteJSON(fs, "out", jsonReport()))

	err := WriteJSON(fs, "out", jsonReport())
	require.ErrorContains(t, err, "already exists")
}

func TestWriteJSONDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteJSON(fs, "a", jsonReport()))
	require.NoError(t, WriteJSON(fs, "b", jsonReport()))

	x, err := afero.ReadFile(fs, filepath.Join("a", JSONFile))
	require.NoError(t, err)
	y, err := afero.ReadFile(fs, filepath.Join("b", JSONFile))
	require.NoError(t, err)
	require.Equal(t, x, y)
}
