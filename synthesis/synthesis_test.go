package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csakilan/FoundryBackend/canvas"
	pkgerrors "github.com/csakilan/FoundryBackend/errors"
)

func TestDefaultsCoversAllKinds(t *testing.T) {
	r := Defaults()

	for _, kind := range []canvas.Kind{
		canvas.KindCompute,
		canvas.KindObjectStore,
		canvas.KindRelationalDB,
		canvas.KindKeyValueTable,
	} {
		s, err := r.For(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, s.Kind())
	}
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ObjectStore{}))

	err := r.Register(&ObjectStore{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))
}

func TestRegistryRejectsNilSynthesizer(t *testing.T) {
	r := NewRegistry()
	err := r.Register(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.For(canvas.KindCompute)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownKind)
}

func TestAccessGrantEmpty(t *testing.T) {
	var g *AccessGrant
	assert.True(t, g.Empty())
	assert.True(t, (&AccessGrant{}).Empty())
	assert.False(t, (&AccessGrant{Policies: []PolicyGrant{{Name: "S3AccessPolicy"}}}).Empty())
}

func TestSubFragments(t *testing.T) {
	assert.Equal(t, "${S3node1}", nameSub("S3node1"))
	assert.Equal(t, "${RDSdb1.Endpoint.Address}", attrSub("RDSdb1", "Endpoint.Address"))
}
