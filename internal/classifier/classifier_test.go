package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(NewRuleClassifier(&fakeEdgeChecker{})))
	require.NoError(t, r.Register(NewHostedVectorClassifier(&fakeEmbedder{}, newFakeVectorStore())))
	require.NoError(t, r.Register(NewLocalVectorClassifier(&fakeEmbedder{}, newFakeVectorStore())))
	require.NoError(t, r.Register(NewGraphClassifier(&fakeMirror{}, 24*time.Hour)))
	require.NoError(t, r.Register(NewLLMClassifier(&fakeGenerator{}, &fakeLabelLookup{})))

	assert.Equal(t, []string{
		"embedding-coherence-v1",
		"embedding-local-v1",
		"graph-structure-v1",
		"llm-quality-v1",
		"rule-completeness-v1",
	}, r.IDs())

	c, ok := r.Get("rule-completeness-v1")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", c.Version())

	_, ok = r.Get("unknown-v1")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewRuleClassifier(&fakeEdgeChecker{})))

	err := r.Register(NewRuleClassifier(&fakeEdgeChecker{}))
	assert.Error(t, err)
}
