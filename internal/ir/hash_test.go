package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRow() DependencyRow {
	return DependencyRow{
		Root:              Ref(KindPage, 10),
		Source:            Ref(KindFolder, 3),
		SourceProperty:    "name",
		Dependent:         Ref(KindPage, 10),
		DependentProperty: PropContent,
		Mask:              EventUpdate | EventDelete,
	}
}

func TestDependencyRowIDDeterminism(t *testing.T) {
	row := testRow()

	id1, err := DependencyRowID(row)
	require.NoError(t, err)
	id2, err := DependencyRowID(row)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
	_, err = hex.DecodeString(id1)
	assert.NoError(t, err)
}

func TestDependencyRowIDIgnoresExistingID(t *testing.T) {
	row := testRow()
	withID := row
	withID.ID = "something"

	assert.Equal(t, MustDependencyRowID(row), MustDependencyRowID(withID))
}

func TestDependencyRowIDChangesWithContent(t *testing.T) {
	base := MustDependencyRowID(testRow())

	other := testRow()
	other.SourceProperty = "description"
	assert.NotEqual(t, base, MustDependencyRowID(other))

	other = testRow()
	other.ChannelID = 4
	assert.NotEqual(t, base, MustDependencyRowID(other))

	other = testRow()
	other.Mask = EventUpdate
	assert.NotEqual(t, base, MustDependencyRowID(other))
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain("a", data), hashWithDomain("b", data))
	// The null separator keeps "ab"+"c" apart from "a"+"bc".
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
