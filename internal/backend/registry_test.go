package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/voxa/internal/config"
)

// --- Mock types ---

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Provider() Provider {
	args := m.Called()
	return args.Get(0).(Provider)
}

func (m *MockBackend) Transcribe(ctx context.Context, req *Request) (*Response, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Tests ---

func TestRegistry_RegisterAndNew(t *testing.T) {
	reg := NewRegistry()
	mockBackend := new(MockBackend)

	var gotCfg config.SpeechConfig
	err := reg.Register(ProviderWhisperCPP, func(cfg config.SpeechConfig, deps Deps) (Backend, error) {
		gotCfg = cfg
		assert.NotNil(t, deps.Logger)
		return mockBackend, nil
	})
	require.NoError(t, err)

	b, err := reg.New(config.SpeechConfig{Backend: "whisper.cpp", Workers: 3}, Deps{})
	require.NoError(t, err)
	assert.Same(t, mockBackend, b)
	assert.Equal(t, 3, gotCfg.Workers)
}

func TestRegistry_RegisterTwice(t *testing.T) {
	reg := NewRegistry()
	f := func(config.SpeechConfig, Deps) (Backend, error) { return new(MockBackend), nil }

	require.NoError(t, reg.Register(ProviderOpenAI, f))
	err := reg.Register(ProviderOpenAI, f)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistry_NewUnknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.New(config.SpeechConfig{Backend: "vosk"}, Deps{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_FactoryErrorPropagation(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("no credentials")
	require.NoError(t, reg.Register(ProviderGoogle, func(config.SpeechConfig, Deps) (Backend, error) {
		return nil, boom
	}))

	_, err := reg.New(config.SpeechConfig{Backend: "google"}, Deps{})
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Providers(t *testing.T) {
	reg := NewRegistry()
	f := func(config.SpeechConfig, Deps) (Backend, error) { return nil, nil }
	require.NoError(t, reg.Register(ProviderWhisperCPP, f))
	require.NoError(t, reg.Register(ProviderGoogle, f))
	require.NoError(t, reg.Register(ProviderOpenAI, f))

	assert.Equal(t, []Provider{ProviderGoogle, ProviderOpenAI, ProviderWhisperCPP}, reg.Providers())
}
