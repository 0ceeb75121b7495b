package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awsm-dev/awsm/internal/model"
)

func TestScopePrecedenceAndDisabledVariables(t *testing.T) {
	ws := New(WithIDs(seqIDs()))
	vs := ws.Variables()
	vs.SetGlobals([]model.Variable{
		{Key: "host", Value: "global", Enabled: true},
		{Key: "token", Value: "g-token", Enabled: true},
	})
	env := vs.AddEnvironment(model.Environment{Name: "dev", Variables: []model.Variable{
		{Key: "host", Value: "env", Enabled: true},
		{Key: "token", Value: "off", Enabled: false},
	}})

	scope := vs.Snapshot().Scope()
	v, _ := scope.Resolve("host")
	assert.Equal(t, "global", v, "no active environment yet")

	require.NoError(t, vs.SetActive(env.ID))
	scope = vs.Snapshot().Scope()
	v, _ = scope.Resolve("host")
	assert.Equal(t, "env", v)
	v, _ = scope.Resolve("token")
	assert.Equal(t, "g-token", v, "disabled environment entries do not shadow globals")
}

func TestCommitTargetsActiveEnvironmentOrGlobals(t *testing.T) {
	ws := New(WithIDs(seqIDs()))
	vs := ws.Variables()

	require.NoError(t, vs.Commit(map[string]string{"token": "abc"}, nil))
	s := vs.Snapshot()
	require.Len(t, s.Globals, 1)
	assert.Equal(t, "token", s.Globals[0].Key)
	assert.True(t, s.Globals[0].Enabled)

	env := vs.AddEnvironment(model.Environment{Name: "dev", Variables: []model.Variable{
		{ID: "x", Key: "user", Value: "old", Enabled: false},
		{ID: "y", Key: "gone", Value: "1", Enabled: true},
	}})
	require.NoError(t, vs.SetActive(env.ID))
	require.NoError(t, vs.Commit(map[string]string{"user": "new", "fresh": "v"}, []string{"gone"}))

	s = vs.Snapshot()
	active := s.Active()
	require.NotNil(t, active)
	assert.Equal(t, map[string]string{"user": "new", "fresh": "v"}, active.Values())
	assert.Len(t, s.Globals, 1, "globals untouched while an environment is active")
}

func TestSnapshotsAreNotMutatedByCommit(t *testing.T) {
	ws := New(WithIDs(seqIDs()))
	vs := ws.Variables()
	vs.SetGlobals([]model.Variable{{Key: "a", Value: "1", Enabled: true}})

	before := vs.Snapshot()
	require.NoError(t, vs.Commit(map[string]string{"a": "2"}, nil))
	assert.Equal(t, "1", before.Globals[0].Value)
	assert.Equal(t, "2", vs.Snapshot().Globals[0].Value)
}

func TestConcurrentCommitsAreAllApplied(t *testing.T) {
	ws := New(WithIDs(seqIDs()))
	vs := ws.Variables()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = vs.Commit(map[string]string{fmt.Sprintf("k%d", i): "v"}, nil)
		}(i)
	}
	wg.Wait()
	assert.Len(t, vs.Snapshot().Globals, 20)
}

func TestEnvironmentCRUD(t *testing.T) {
	ws := New(WithIDs(seqIDs()))
	vs := ws.Variables()

	_, err := vs.CreateEnvironment("  ")
	assert.Error(t, err)

	env, err := vs.CreateEnvironment("staging")
	require.NoError(t, err)
	require.NoError(t, vs.UpdateEnvironment(env.ID, "stage", []model.Variable{{Key: "a", Value: "b", Enabled: true}}))

	found, ok := vs.Find("STAGE")
	require.True(t, ok)
	assert.Equal(t, env.ID, found.ID)

	require.NoError(t, vs.SetActive(env.ID))
	assert.Error(t, vs.SetActive("nope"))
	require.NoError(t, vs.DeleteEnvironment(env.ID))
	assert.Nil(t, vs.Snapshot().Active())
	assert.Error(t, vs.DeleteEnvironment(env.ID))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.env")
	require.NoError(t, os.WriteFile(path, []byte("BASE_URL=http://localhost:8080\nTOKEN=abc\n"), 0o644))

	ws := New(WithIDs(seqIDs()))
	env, err := ws.Variables().LoadDotEnv(path, "local")
	require.NoError(t, err)
	assert.Equal(t, "local", env.Name)
	assert.Equal(t, map[string]string{"BASE_URL": "http://localhost:8080", "TOKEN": "abc"}, env.Values())

	_, ok := ws.Variables().Find("local")
	assert.True(t, ok)
}
