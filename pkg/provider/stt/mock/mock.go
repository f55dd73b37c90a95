// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to script transcripts, errors and load behaviour, and to
// inspect which audio the caller delivered.
//
// Example:
//
//	p := &mock.Provider{Transcript: types.Transcript{Text: "the cat sat"}}
//	tr, _ := p.Transcribe(ctx, pcm, stt.Config{SampleRate: 16000})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/prosodia/pkg/provider/stt"
	"github.com/MrWong99/prosodia/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the audio bytes passed to Transcribe.
	PCM []byte
	// Cfg is the Config passed to Transcribe.
	Cfg stt.Config
}

// Provider is a mock implementation of stt.Provider and stt.Loader.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Transcribe when TranscribeErr is nil.
	Transcript types.Transcript

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// LoadErr, if non-nil, is returned from every Load call.
	LoadErr error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall

	// LoadCalls counts calls to Load.
	LoadCalls int
}

// Transcribe records the call and returns Transcript, TranscribeErr.
func (p *Provider) Transcribe(_ context.Context, pcm []byte, cfg stt.Config) (types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{PCM: append([]byte(nil), pcm...), Cfg: cfg})
	if p.TranscribeErr != nil {
		return types.Transcript{}, p.TranscribeErr
	}
	return p.Transcript, nil
}

// Load records the call and returns LoadErr.
func (p *Provider) Load(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadCalls++
	return p.LoadErr
}

// Calls returns a snapshot of the recorded Transcribe calls. Thread-safe.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TranscribeCall(nil), p.TranscribeCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.LoadCalls = 0
}

// Compile-time interface assertions.
var (
	_ stt.Provider = (*Provider)(nil)
	_ stt.Loader   = (*Provider)(nil)
)
