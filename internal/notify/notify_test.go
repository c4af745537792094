package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryProviderRecordsRunIDs(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.Publish(context.Background(), "run-1"))
	require.NoError(t, m.Publish(context.Background(), "run-2"))

	require.Equal(t, []string{"run-1", "run-2"}, m.Published())
}

func TestNoOpProvider(t *testing.T) {
	t.Parallel()

	var p NoOpProvider
	require.NoError(t, p.Publish(context.Background(), "run-1"))
	require.NoError(t, p.Close())
}
