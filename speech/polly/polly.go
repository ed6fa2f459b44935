// Package polly synthesizes replies with Amazon Polly.
package polly

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/speech"
)

// API is the subset of the Polly client the speaker uses.
type API interface {
	SynthesizeSpeech(ctx context.Context, in *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Speaker turns text into audio with one fixed voice.
type Speaker struct {
	api API
	cfg speech.Config
}

// New creates a speaker from a resolved aws.Config.
func New(awsCfg aws.Config, cfg speech.Config) (*Speaker, error) {
	return NewWithAPI(awspolly.NewFromConfig(awsCfg), cfg)
}

// NewWithAPI creates a speaker over any API implementation.
func NewWithAPI(api API, cfg speech.Config) (*Speaker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Speaker{api: api, cfg: cfg}, nil
}

// Synthesize returns the audio stream for text. The caller closes it.
func (s *Speaker) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	in := &awspolly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(s.cfg.VoiceID),
		OutputFormat: types.OutputFormat(s.cfg.Format),
		Engine:       types.Engine(s.cfg.Engine),
	}
	if s.cfg.SampleRate != "" {
		in.SampleRate = aws.String(s.cfg.SampleRate)
	}
	out, err := s.api.SynthesizeSpeech(ctx, in)
	if err != nil {
		return nil, errors.Transfer("synthesize speech", err)
	}
	return out.AudioStream, nil
}

// FileName is the attachment name matching the output format.
func (s *Speaker) FileName() string {
	switch s.cfg.Format {
	case "ogg_vorbis":
		return "reply.ogg"
	case "pcm":
		return "reply.pcm"
	default:
		return "reply.mp3"
	}
}
