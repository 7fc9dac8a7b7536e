package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitKeyPrefixOnly(t *testing.T) {
	t.Parallel()

	u := Unit{Prefix: "SM"}
	require.Equal(t, "SM", u.Key())
	require.Equal(t, 2, u.Depth())
	require.False(t, u.IsCombination())
}

func TestUnitKeyCombination(t *testing.T) {
	t.Parallel()

	u := Unit{Profession: "Nurse", State: "Victoria", Prefix: "A"}
	require.Equal(t, "Nurse|Victoria|A", u.Key())
	require.True(t, u.IsCombination())
}

func TestUnitKeyWithSuburb(t *testing.T) {
	t.Parallel()

	u := Unit{Profession: "Nurse", State: "Victoria", Suburb: "Geelong", Prefix: "A"}
	require.Equal(t, "Nurse|Victoria|Geelong|A", u.Key())
}

func TestUnitKeysDistinguishDimensions(t *testing.T) {
	t.Parallel()

	withSuburb := Unit{Profession: "Nurse", State: "Victoria", Suburb: "Geelong", Prefix: "A"}
	withoutSuburb := Unit{Profession: "Nurse", State: "Victoria", Prefix: "A"}
	require.NotEqual(t, withSuburb.Key(), withoutSuburb.Key())
}
