package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadCSV(t *testing.T) {
	objects := []Object{
		{Kind: KindIndex, Label: "Movie", Properties: []string{"release_year"}, Status: "ONLINE"},
		{Kind: KindConstraint, Label: "Movie", Properties: []string{"title", "release_year"}, Unique: true, Status: "ONLINE"},
	}

	path := filepath.Join(t.TempDir(), "indexes.csv")
	require.NoError(t, WriteCSV(path, objects))

	back, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, objects, back)
}

func TestReadCSVSkipsUnparseableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constraints.csv")
	body := "kind,label,property,uniqueness,status\n" +
		"trigger,Movie,title,true,ONLINE\n" + // unknown kind
		"constraint,Movie,title,true,ONLINE\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	objects, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, KindConstraint, objects[0].Kind)
}
