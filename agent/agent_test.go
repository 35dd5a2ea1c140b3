package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/coderlang-ai/coderlang/core"
)

// mockStep is a testify-mock core.Agent used by the composite agent tests.
type mockStep struct {
	mock.Mock
	name string
}

func newMockStep(name string) *mockStep {
	return &mockStep{name: name}
}

func (m *mockStep) Name() string { return m.name }

func (m *mockStep) Run(rc *core.RunContext) error {
	return m.Called(rc).Error(0)
}

func (m *mockStep) Start(rc *core.RunContext) error {
	return m.Called(rc).Error(0)
}

func (m *mockStep) Stop(rc *core.RunContext) error {
	return m.Called(rc).Error(0)
}

func (m *mockStep) SubAgents() []core.Agent {
	return m.Called().Get(0).([]core.Agent)
}

func (m *mockStep) AddSubAgent(agent core.Agent) { m.Called(agent) }

func (m *mockStep) RemoveSubAgent(id string) bool {
	return m.Called(id).Bool(0)
}

func (m *mockStep) SetOutputKey(key string) { m.Called(key) }

func (m *mockStep) SubstituteTemplateVariables(template string, state map[string]interface{}) string {
	return m.Called(template, state).String(0)
}

func (m *mockStep) Description() string {
	return m.Called().String(0)
}

func (m *mockStep) SetSubAgents(children ...core.Agent) error {
	return m.Called(children).Error(0)
}

func (m *mockStep) Parent() core.Agent {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(core.Agent)
}

func (m *mockStep) FindAgent(name string) core.Agent {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(core.Agent)
}

func TestNewID_IsUUID(t *testing.T) {
	id := core.NewID()
	assert.NotEmpty(t, id)
	assert.Len(t, id, 36)
}

func TestStringPtr(t *testing.T) {
	ptr := stringPtr("code_review")
	assert.NotNil(t, ptr)
	assert.Equal(t, "code_review", *ptr)
}

func TestBoolPtr(t *testing.T) {
	ptr := boolPtr(true)
	assert.NotNil(t, ptr)
	assert.True(t, *ptr)

	ptr = boolPtr(false)
	assert.NotNil(t, ptr)
	assert.False(t, *ptr)
}
