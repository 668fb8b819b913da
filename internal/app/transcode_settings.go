package app

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSettings = errors.New("invalid transcode settings")

var validPresets = map[string]bool{
	"ultrafast": true,
	"superfast": true,
	"veryfast":  true,
	"faster":    true,
	"fast":      true,
	"medium":    true,
}

var validAudioBitrates = map[string]bool{
	"96k":  true,
	"128k": true,
	"192k": true,
	"256k": true,
}

type TranscodeSettings struct {
	Preset       string `json:"preset"`
	CRF          int    `json:"crf"`
	AudioBitrate string `json:"audioBitrate"`
}

// Validate checks the fields that are set. Zero values mean "keep current".
func (s TranscodeSettings) Validate() error {
	if s.Preset != "" && !validPresets[s.Preset] {
		return fmt.Errorf("%w: preset %q", ErrInvalidSettings, s.Preset)
	}
	if s.CRF < 0 || s.CRF > 51 {
		return fmt.Errorf("%w: crf must be 0-51", ErrInvalidSettings)
	}
	if s.AudioBitrate != "" && !validAudioBitrates[s.AudioBitrate] {
		return fmt.Errorf("%w: audioBitrate %q", ErrInvalidSettings, s.AudioBitrate)
	}
	return nil
}

type TranscodeSettingsEngine interface {
	EncodingPreset() string
	EncodingCRF() int
	EncodingAudioBitrate() string
	UpdateEncodingSettings(preset string, crf int, audioBitrate string)
}

type TranscodeSettingsStore interface {
	GetTranscodeSettings(ctx context.Context) (TranscodeSettings, bool, error)
	SetTranscodeSettings(ctx context.Context, settings TranscodeSettings) error
}

type TranscodeSettingsManager struct {
	engine  TranscodeSettingsEngine
	store   TranscodeSettingsStore
	timeout time.Duration
}

func NewTranscodeSettingsManager(engine TranscodeSettingsEngine, store TranscodeSettingsStore) *TranscodeSettingsManager {
	return &TranscodeSettingsManager{
		engine:  engine,
		store:   store,
		timeout: 5 * time.Second,
	}
}

// Load applies persisted settings to the engine. It reports whether anything
// was found.
func (m *TranscodeSettingsManager) Load(ctx context.Context) (bool, error) {
	if m.store == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	settings, ok, err := m.store.GetTranscodeSettings(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := settings.Validate(); err != nil {
		return false, err
	}
	m.engine.UpdateEncodingSettings(settings.Preset, settings.CRF, settings.AudioBitrate)
	return true, nil
}

func (m *TranscodeSettingsManager) Get() TranscodeSettings {
	return TranscodeSettings{
		Preset:       m.engine.EncodingPreset(),
		CRF:          m.engine.EncodingCRF(),
		AudioBitrate: m.engine.EncodingAudioBitrate(),
	}
}

// Update merges settings into the current values, applies them and persists
// the result. A failed write rolls the engine back.
func (m *TranscodeSettingsManager) Update(settings TranscodeSettings) (TranscodeSettings, error) {
	if err := settings.Validate(); err != nil {
		return TranscodeSettings{}, err
	}
	prev := m.Get()
	if settings.Preset == "" {
		settings.Preset = prev.Preset
	}
	if settings.CRF == 0 {
		settings.CRF = prev.CRF
	}
	if settings.AudioBitrate == "" {
		settings.AudioBitrate = prev.AudioBitrate
	}
	m.engine.UpdateEncodingSettings(settings.Preset, settings.CRF, settings.AudioBitrate)

	if m.store == nil {
		return settings, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.store.SetTranscodeSettings(ctx, settings); err != nil {
		m.engine.UpdateEncodingSettings(prev.Preset, prev.CRF, prev.AudioBitrate)
		return TranscodeSettings{}, err
	}
	return settings, nil
}
