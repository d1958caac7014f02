package completion

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/ipogen/internal/testutil"
	"github.com/nomagicln/ipogen/pkg/cli"
	"github.com/nomagicln/ipogen/pkg/config"
	"github.com/nomagicln/ipogen/pkg/model"
	"github.com/nomagicln/ipogen/pkg/store"
)

// setupTestEnv creates a config manager in a temp directory.
func setupTestEnv(t *testing.T) *config.Manager {
	t.Helper()

	configMgr, err := config.NewManager(config.WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create config manager: %v", err)
	}
	return configMgr
}

func TestCompleteModelNames(t *testing.T) {
	configMgr := setupTestEnv(t)
	provider := NewProvider(configMgr, nil)

	assert.Empty(t, provider.CompleteModelNames(""))

	for _, name := range []string{"checkout", "checkout-mobile", "login"} {
		require.NoError(t, configMgr.SaveModel(name, []byte(testutil.MinimalModel)))
	}

	assert.Equal(t, []string{"checkout", "checkout-mobile", "login"}, provider.CompleteModelNames(""))
	assert.Equal(t, []string{"checkout", "checkout-mobile"}, provider.CompleteModelNames("check"))
	assert.Empty(t, provider.CompleteModelNames("x"))

	assert.Nil(t, NewProvider(nil, nil).CompleteModelNames(""))
}

func TestCompleteEnginesAndFormats(t *testing.T) {
	provider := NewProvider(nil, nil)

	assert.Equal(t, []string{"ipo2", "simple"}, provider.CompleteEngines(""))
	assert.Equal(t, []string{"simple"}, provider.CompleteEngines("s"))
	assert.Equal(t, []string{"table", "json", "yaml", "csv"}, provider.CompleteFormats(""))
	assert.Equal(t, []string{"yaml"}, provider.CompleteFormats("y"))
}

func TestCompleteOperations(t *testing.T) {
	provider := NewProvider(nil, nil)
	specPath := testutil.TempOpenAPISpec(t, testutil.PetstoreOpenAPISpec)

	assert.Equal(t, []string{"addPet", "findPetsByStatus", "getPetById"}, provider.CompleteOperations(specPath, ""))
	assert.Equal(t, []string{"findPetsByStatus"}, provider.CompleteOperations(specPath, "find"))

	// served from the document cache
	assert.Len(t, provider.specs, 1)
	assert.Len(t, provider.CompleteOperations(specPath, ""), 3)

	assert.Nil(t, provider.CompleteOperations(filepath.Join(t.TempDir(), "missing.yaml"), ""))
}

func TestCompleteRunIDs(t *testing.T) {
	assert.Nil(t, NewProvider(nil, nil).CompleteRunIDs(""))

	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	m, err := model.Parse([]byte(testutil.MinimalModel))
	require.NoError(t, err)
	out, err := cli.NewHandler(nil, cli.WithCache(cache)).Generate(context.Background(), m, cli.GenerateOptions{})
	require.NoError(t, err)

	provider := NewProvider(nil, cache)
	assert.Equal(t, []string{out.RunID}, provider.CompleteRunIDs(""))
	assert.Equal(t, []string{out.RunID}, provider.CompleteRunIDs(out.RunID[:4]))
	assert.Empty(t, provider.CompleteRunIDs("zzzz"))
}
