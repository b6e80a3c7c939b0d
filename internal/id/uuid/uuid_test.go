package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUniqueUUID(t *testing.T) {
	gen := NewUUIDGenerator()

	a, err := gen.NewID()
	require.NoError(t, err)
	b, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	parsed, err := guuid.Parse(a)
	require.NoError(t, err)
	require.Equal(t, guuid.Version(7), parsed.Version())
}
