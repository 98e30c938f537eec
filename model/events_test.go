package model_test

import (
	"testing"

	"github.com/revel/devproxy/model"
	"github.com/stretchr/testify/assert"
)

func TestLaunchStateTransitions(t *testing.T) {
	assert.True(t, model.CanTransition(model.NotStarted, model.Starting))
	assert.True(t, model.CanTransition(model.Starting, model.Running))
	for _, terminal := range []model.LaunchState{model.BackendCrashed, model.ProxyFailed, model.Stopped} {
		assert.True(t, model.CanTransition(model.Running, terminal), terminal.String())
		assert.True(t, terminal.Terminal())
		assert.False(t, model.CanTransition(terminal, model.Stopped), terminal.String())
	}
	assert.False(t, model.CanTransition(model.NotStarted, model.Running))
	assert.False(t, model.CanTransition(model.Starting, model.Stopped))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "stderr", model.Stderr.String())
	assert.Equal(t, "delete", model.Delete.String())
	assert.Equal(t, "backend-crashed", model.BackendCrashed.String())
}
