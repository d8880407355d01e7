package hunt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recklessbear/rbsite/internal/models"
)

func TestPlacements(t *testing.T) {
	placements, err := Placements()
	require.NoError(t, err)
	require.Len(t, placements, models.TotalLogosRequired)

	seen := map[string]bool{}
	for _, p := range placements {
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Page)
		assert.NotEmpty(t, p.Asset)
		assert.False(t, seen[p.ID], "duplicate placement id %s", p.ID)
		seen[p.ID] = true
	}
}

func TestShouldRender(t *testing.T) {
	svc := newFakeService()
	m, _, _ := newTestMachine(t, svc)
	registerTestUser(t, m)

	placements, err := Placements()
	require.NoError(t, err)
	first := placements[0]

	assert.True(t, m.ShouldRender(first.ID, first.Page))
	assert.False(t, m.ShouldRender(first.ID, "/some-other-page"))
	assert.False(t, m.ShouldRender("no-such-logo", first.Page))

	// Once found, the trigger renders as the plain asset.
	require.NoError(t, m.FindLogo(context.Background(), first.ID))
	assert.False(t, m.ShouldRender(first.ID, first.Page))
}
