package google

import (
	"context"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/ekisa-team/voxa/internal/backend"
	"github.com/ekisa-team/voxa/internal/config"
)

type MockRecognizer struct {
	mock.Mock
}

func (m *MockRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest, _ ...gax.CallOption) (*speechpb.RecognizeResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*speechpb.RecognizeResponse)
	return resp, args.Error(1)
}

func (m *MockRecognizer) Close() error {
	return m.Called().Error(0)
}

func result(text string) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
	}
}

func TestTranscribe_ReportsAudioLength(t *testing.T) {
	first := result("one")
	first.ResultEndTime = durationpb.New(1500 * time.Millisecond)
	second := result("two")
	second.ResultEndTime = durationpb.New(4 * time.Second)

	rec := new(MockRecognizer)
	rec.On("Recognize", mock.Anything, mock.Anything).Return(&speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{first, second},
	}, nil)

	b := NewWithClient(rec, config.GoogleConfig{LanguageCode: "en-US"}, nil)
	resp, err := b.Transcribe(context.Background(), &backend.Request{Filename: "a.flac", Audio: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "one two", resp.Text)
	assert.InDelta(t, 4.0, resp.Metadata.BackendSpecific["audio_seconds"], 0.001)
	assert.Equal(t, "FLAC", resp.Metadata.BackendSpecific["encoding"])
}

func TestEncodingFor(t *testing.T) {
	tests := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"live_recording_20250101_120000.webm": speechpb.RecognitionConfig_WEBM_OPUS,
		"a.OGG":                               speechpb.RecognitionConfig_OGG_OPUS,
		"a.wav":                               speechpb.RecognitionConfig_LINEAR16,
		"a.flac":                              speechpb.RecognitionConfig_FLAC,
		"a.mp3":                               speechpb.RecognitionConfig_MP3,
		"noext":                               speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
	}
	for name, want := range tests {
		assert.Equal(t, want, EncodingFor(name), name)
	}
}

func TestTranscribe_JoinsResults(t *testing.T) {
	rec := new(MockRecognizer)
	rec.On("Recognize", mock.Anything, mock.MatchedBy(func(req *speechpb.RecognizeRequest) bool {
		return req.GetConfig().GetEncoding() == speechpb.RecognitionConfig_WEBM_OPUS &&
			req.GetConfig().GetLanguageCode() == "en-US" &&
			string(req.GetAudio().GetContent()) == "opus"
	})).Return(&speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{result("hello"), result(" world "), {}},
	}, nil)

	b := NewWithClient(rec, config.GoogleConfig{LanguageCode: "en-US"}, nil)
	resp, err := b.Transcribe(context.Background(), &backend.Request{
		Filename: "clip.webm",
		Audio:    strings.NewReader("opus"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text)
	rec.AssertExpectations(t)
}

func TestTranscribe_InvalidArgument(t *testing.T) {
	rec := new(MockRecognizer)
	rec.On("Recognize", mock.Anything, mock.Anything).
		Return(nil, status.Error(codes.InvalidArgument, "bad encoding"))

	b := NewWithClient(rec, config.GoogleConfig{LanguageCode: "en-US"}, nil)
	_, err := b.Transcribe(context.Background(), &backend.Request{Filename: "x.bin", Audio: strings.NewReader("x")})
	assert.ErrorIs(t, err, backend.ErrUnsupportedAudio)
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	b := NewWithClient(new(MockRecognizer), config.GoogleConfig{}, nil)
	_, err := b.Transcribe(context.Background(), &backend.Request{Filename: "x.wav", Audio: strings.NewReader("")})
	assert.ErrorIs(t, err, backend.ErrEmptyAudio)
}

func TestClose(t *testing.T) {
	rec := new(MockRecognizer)
	rec.On("Close").Return(nil).Once()

	b := NewWithClient(rec, config.GoogleConfig{}, nil)
	assert.NoError(t, b.Close())
	rec.AssertExpectations(t)
}
