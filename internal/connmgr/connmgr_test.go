package connmgr

import (
	"testing"

	"github.com/beaconmq/beacon/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenLookup(t *testing.T) {
	r := New()
	self := &struct{}{}
	info := engine.ConnInfo{}

	r.Register([]byte("c1"), self, info)

	got, gotInfo, ok := r.Lookup([]byte("c1"))
	require.True(t, ok)
	assert.Same(t, self, got)
	assert.Equal(t, info, gotInfo)
}

func TestLookup_UnknownClientNotFound(t *testing.T) {
	r := New()

	_, _, ok := r.Lookup([]byte("ghost"))

	assert.False(t, ok)
}

func TestUnregister_RemovesEntry(t *testing.T) {
	r := New()
	r.Register([]byte("c1"), &struct{}{}, engine.ConnInfo{})

	r.Unregister([]byte("c1"))

	_, _, ok := r.Lookup([]byte("c1"))
	assert.False(t, ok)
}

func TestRegister_ReplacesPriorEntryForSameClientID(t *testing.T) {
	r := New()
	first := &struct{}{}
	second := &struct{}{}
	r.Register([]byte("c1"), first, engine.ConnInfo{})

	r.Register([]byte("c1"), second, engine.ConnInfo{})

	got, _, ok := r.Lookup([]byte("c1"))
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Count())
}

func TestCount_ReflectsRegisteredClients(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.Count())

	r.Register([]byte("c1"), &struct{}{}, engine.ConnInfo{})
	r.Register([]byte("c2"), &struct{}{}, engine.ConnInfo{})
	assert.Equal(t, 2, r.Count())

	r.Unregister([]byte("c1"))
	assert.Equal(t, 1, r.Count())
}
