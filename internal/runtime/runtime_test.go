package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policyYAML = `version: "1"
default:
  use_llc: false
tables:
  events:
    use_llc: true
`

func writePolicy(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "routing-policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPolicyManagerLoad(t *testing.T) {
	path := writePolicy(t, t.TempDir(), policyYAML)
	m := NewPolicyManager(path)
	require.NoError(t, m.Load())

	policy := m.Current()
	assert.Equal(t, "1", policy.Version)
	assert.True(t, policy.PolicyFor("events").UseLLC)
	assert.True(t, policy.PolicyFor("events_REALTIME").UseLLC, "physical names resolve through the raw name")
	assert.False(t, policy.PolicyFor("other_REALTIME").UseLLC)
	assert.NotEmpty(t, policy.Checksum)
}

func TestPolicyManagerMissingFileYieldsZeroPolicy(t *testing.T) {
	m := NewPolicyManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, m.Load())
	assert.False(t, m.Current().PolicyFor("events").UseLLC)

	empty := NewPolicyManager("")
	require.NoError(t, empty.Load())
}

func TestPolicyManagerRejectsMalformedFile(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "tables: [not a map]")
	m := NewPolicyManager(path)
	require.Error(t, m.Load())
}

func TestHotReloadEmitsChanges(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, policyYAML)

	h, err := NewHotReload(path)
	require.NoError(t, err)
	defer func() { _ = h.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, errs := h.Watch(ctx)

	updated := `version: "2"
tables:
  events:
    use_llc: false
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case change := <-changes:
		require.NotNil(t, change)
		assert.Equal(t, "2", change.Version)
		assert.False(t, change.PolicyFor("events").UseLLC)
	case err := <-errs:
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("no change emitted")
	}
}

func TestHotReloadIgnoresUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, policyYAML)

	h, err := NewHotReload(path)
	require.NoError(t, err)
	defer func() { _ = h.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, _ := h.Watch(ctx)

	// First write establishes the checksum; identical rewrite must not
	// emit a second change.
	require.NoError(t, os.WriteFile(path, []byte(policyYAML), 0o644))
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("first change not emitted")
	}

	require.NoError(t, os.WriteFile(path, []byte(policyYAML), 0o644))
	select {
	case change := <-changes:
		t.Fatalf("unexpected change for identical content: %+v", change)
	case <-time.After(300 * time.Millisecond):
	}
}
