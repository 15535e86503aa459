package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	values, err := repo.GetStrings(ctx, []string{"users:name:u-1"})
	require.NoError(t, err)
	assert.Empty(t, values)

	assert.NoError(t, repo.SetStrings(ctx, map[string]string{"k": "v"}, time.Minute))
	assert.NoError(t, repo.Publish(ctx, "academic-programs:notifications", map[string]string{"type": "degree.approved"}))
	assert.NoError(t, repo.Close())
}
