package component

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	*m.events = append(*m.events, "start:"+m.name)
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	*m.events = append(*m.events, "stop:"+m.name)
	return m.stopErr
}
func (m *mockComponent) Health(context.Context) Health { return m.health }

func TestRegistry_StartStopOrder(t *testing.T) {
	var events []string
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "engine", events: &events}))
	require.NoError(t, r.Register(&mockComponent{name: "server", events: &events}))

	require.NoError(t, r.StartAll(context.Background()))
	require.NoError(t, r.StopAll(context.Background()))

	assert.Equal(t, []string{"start:engine", "start:server", "stop:server", "stop:engine"}, events)
}

func TestRegistry_DuplicateName(t *testing.T) {
	var events []string
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "engine", events: &events}))
	assert.Error(t, r.Register(&mockComponent{name: "engine", events: &events}))
}

func TestRegistry_StartFailureStopsStarted(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "engine", events: &events}))
	require.NoError(t, r.Register(&mockComponent{name: "server", startErr: boom, events: &events}))

	err := r.StartAll(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start:engine", "start:server", "stop:engine"}, events)
}

func TestRegistry_StopAllCollectsErrors(t *testing.T) {
	var events []string
	boom := errors.New("stop failed")
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "a", stopErr: boom, events: &events}))
	require.NoError(t, r.Register(&mockComponent{name: "b", events: &events}))
	require.NoError(t, r.StartAll(context.Background()))

	err := r.StopAll(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)

	// second stop is a no-op
	assert.NoError(t, r.StopAll(context.Background()))
}

func TestRegistry_HealthAllAndGet(t *testing.T) {
	var events []string
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{
		name: "engine", events: &events,
		health: Health{Name: "engine", Status: StatusHealthy},
	}))

	health := r.HealthAll(context.Background())
	require.Len(t, health, 1)
	assert.Equal(t, StatusHealthy, health[0].Status)
	assert.NotNil(t, r.Get("engine"))
	assert.Nil(t, r.Get("missing"))
}

func TestOverall(t *testing.T) {
	assert.Equal(t, StatusHealthy, Overall(nil))
	assert.Equal(t, StatusDegraded, Overall([]Health{
		{Name: "a", Status: StatusHealthy},
		{Name: "b", Status: StatusDegraded},
	}))
	assert.Equal(t, StatusUnhealthy, Overall([]Health{
		{Name: "a", Status: StatusDegraded},
		{Name: "b", Status: StatusUnhealthy},
		{Name: "c", Status: StatusHealthy},
	}))
}
