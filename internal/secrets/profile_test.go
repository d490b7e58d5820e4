package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticStoreResolve(t *testing.T) {
	store := NewStaticStore(map[string]Profile{
		"billing": {ConnectionString: "kafka:9092", Topic: "billing", Subscription: "relay"},
	})

	p, err := store.ResolveProfile("billing")
	require.NoError(t, err)
	assert.Equal(t, "billing", p.Name)
	assert.Equal(t, "kafka:9092", p.ConnectionString)
	assert.Equal(t, "relay", p.Subscription)

	_, err = store.ResolveProfile("shipping")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProfileNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "shipping", nf.Name)
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("BILLING_BROKERS", "b1:9092,b2:9092")

	store, err := Parse([]byte(`
profiles:
  billing:
    connectionString: ${BILLING_BROKERS}
    topic: billing
    subscription: audit
  relay:
    topic: relay
`))
	require.NoError(t, err)

	p, err := store.ResolveProfile("billing")
	require.NoError(t, err)
	assert.Equal(t, "b1:9092,b2:9092", p.ConnectionString)
	assert.Equal(t, "audit", p.Subscription)

	assert.ElementsMatch(t, []string{"billing", "relay"}, store.Names())
}

func TestParseRequiresTopic(t *testing.T) {
	_, err := Parse([]byte("profiles:\n  broken:\n    subscription: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  a:\n    topic: a\n"), 0o600))

	store, err := LoadFile(path)
	require.NoError(t, err)
	_, err = store.ResolveProfile("a")
	require.NoError(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
