package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"cinemastream/internal/domain"
	"cinemastream/internal/metrics"
)

const (
	defaultMaxSessions  = 2
	defaultIdleTimeout  = 60 * time.Second
	defaultSegmentSecs  = 4
	defaultPreset       = "veryfast"
	defaultCRF          = 23
	defaultAudioBitrate = "192k"
	playlistPoll        = 150 * time.Millisecond
)

// Transcoder is a running transcode process.
type Transcoder interface {
	Progress() float64
	Done() <-chan struct{}
	Err() error
	Stop()
}

// LaunchFunc starts a transcoder writing into dir.
type LaunchFunc func(ctx context.Context, dir string, args []string) (Transcoder, error)

type Config struct {
	FFmpegPath      string
	BaseDir         string
	MaxSessions     int
	IdleTimeout     time.Duration
	SegmentDuration int
	Preset          string
	CRF             int
	AudioBitrate    string
	Logger          *slog.Logger
}

type Option func(*Manager)

func WithFs(fsys afero.Fs) Option {
	return func(m *Manager) {
		if fsys != nil {
			m.fs = fsys
		}
	}
}

func WithLauncher(launch LaunchFunc) Option {
	return func(m *Manager) {
		if launch != nil {
			m.launch = launch
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// SessionRequest asks for a transcode of Path on behalf of ClientID.
// AudioTrack is the container stream index; a negative value picks the first
// audio stream.
type SessionRequest struct {
	ClientID     string
	Path         string
	AudioTrack   int
	Quality      domain.Quality
	StartSeconds float64
}

type ownerKey struct {
	client string
	path   string
}

type session struct {
	info domain.StreamingSession
	root string
	dir  string
	gen  int
	proc Transcoder
}

// Manager owns every transcode session and the ffmpeg process behind it.
// Each (client, path) pair maps to at most one session, and each session has
// at most one live process.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	fs     afero.Fs
	launch LaunchFunc
	now    func() time.Time
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	owners   map[ownerKey]string
	closed   bool

	settingsMu   sync.RWMutex
	preset       string
	crf          int
	audioBitrate string

	changeMu sync.RWMutex
	onChange func([]domain.StreamingSession)

	reaperStop chan struct{}
}

func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = defaultSegmentSecs
	}
	if strings.TrimSpace(cfg.Preset) == "" {
		cfg.Preset = defaultPreset
	}
	if cfg.CRF <= 0 {
		cfg.CRF = defaultCRF
	}
	if strings.TrimSpace(cfg.AudioBitrate) == "" {
		cfg.AudioBitrate = defaultAudioBitrate
	}
	if strings.TrimSpace(cfg.FFmpegPath) == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "transcode")),
		fs:           afero.NewOsFs(),
		now:          time.Now,
		sem:          semaphore.NewWeighted(int64(cfg.MaxSessions)),
		ctx:          ctx,
		cancel:       cancel,
		sessions:     make(map[string]*session),
		owners:       make(map[ownerKey]string),
		preset:       cfg.Preset,
		crf:          cfg.CRF,
		audioBitrate: cfg.AudioBitrate,
		reaperStop:   make(chan struct{}),
	}
	m.launch = m.launchFFmpeg
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) launchFFmpeg(ctx context.Context, dir string, args []string) (Transcoder, error) {
	proc := NewProcess(ctx, m.cfg.FFmpegPath, args, dir)
	if err := proc.Start(); err != nil {
		return nil, err
	}
	return proc, nil
}

// Start runs the idle reaper until Shutdown.
func (m *Manager) Start() {
	interval := m.cfg.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.reaperStop:
				return
			case <-ticker.C:
				m.reapIdle()
			}
		}
	}()
}

// OnChange registers a callback invoked with the session list after every
// change. It runs outside the manager lock.
func (m *Manager) OnChange(fn func([]domain.StreamingSession)) {
	m.changeMu.Lock()
	m.onChange = fn
	m.changeMu.Unlock()
}

func (m *Manager) notify() {
	m.changeMu.RLock()
	fn := m.onChange
	m.changeMu.RUnlock()
	if fn != nil {
		fn(m.List())
	}
}

// Acquire returns the caller's session for req, reusing a live one when the
// parameters match and superseding it when they do not.
func (m *Manager) Acquire(ctx context.Context, req SessionRequest) (domain.StreamingSession, error) {
	if err := ctx.Err(); err != nil {
		return domain.StreamingSession{}, err
	}
	if strings.TrimSpace(req.Path) == "" {
		return domain.StreamingSession{}, fmt.Errorf("%w: empty path", domain.ErrInvalidReference)
	}
	if req.Quality == "" {
		req.Quality = domain.QualityOriginal
	}
	if req.StartSeconds < 0 {
		req.StartSeconds = 0
	}

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.StreamingSession{}, fmt.Errorf("%w: shutting down", domain.ErrResourceExhausted)
	}

	key := ownerKey{client: req.ClientID, path: req.Path}
	superseded := false
	if id, ok := m.owners[key]; ok {
		s := m.sessions[id]
		m.refreshLocked(s)
		if s.info.AudioTrack == req.AudioTrack && s.info.Quality == req.Quality {
			s.info.LastAccess = m.now()
			if req.StartSeconds == 0 || s.info.Buffered(req.StartSeconds) {
				snap := s.info
				m.mu.Unlock()
				return snap, nil
			}
			retire, err := m.restartLocked(s, req.StartSeconds)
			cleanup = append(cleanup, retire)
			snap := s.info
			m.mu.Unlock()
			m.notify()
			return snap, err
		}
		// the replacement inherits the slot
		cleanup = append(cleanup, m.stopLocked(s, "superseded", false))
		superseded = true
	}

	if !superseded && !m.sem.TryAcquire(1) {
		m.mu.Unlock()
		metrics.TranscodeRejectedTotal.Inc()
		m.logger.Warn("transcode capacity reached",
			slog.String("clientId", req.ClientID),
			slog.Int("maxSessions", m.cfg.MaxSessions),
		)
		return domain.StreamingSession{}, fmt.Errorf("%w: %d sessions active", domain.ErrResourceExhausted, m.cfg.MaxSessions)
	}

	now := m.now()
	id := uuid.NewString()
	s := &session{
		info: domain.StreamingSession{
			ID:           id,
			ClientID:     req.ClientID,
			Path:         req.Path,
			AudioTrack:   req.AudioTrack,
			Quality:      req.Quality,
			State:        domain.SessionCreated,
			StartSeconds: req.StartSeconds,
			CreatedAt:    now,
			LastAccess:   now,
		},
		root: filepath.Join(m.cfg.BaseDir, id),
	}
	if err := m.spawnLocked(s); err != nil {
		m.sem.Release(1)
		if rmErr := m.fs.RemoveAll(s.root); rmErr != nil {
			m.logger.Warn("remove session dir failed", slog.String("dir", s.root), slog.String("error", rmErr.Error()))
		}
		m.mu.Unlock()
		return domain.StreamingSession{}, err
	}
	m.setStateLocked(s, domain.SessionRunning)
	m.sessions[id] = s
	m.owners[key] = id
	metrics.TranscodeActiveSessions.Set(float64(len(m.sessions)))
	snap := s.info
	m.mu.Unlock()

	m.logger.Info("transcode session started",
		slog.String("sessionId", id),
		slog.String("clientId", req.ClientID),
		slog.String("quality", string(req.Quality)),
		slog.Int("audioTrack", req.AudioTrack),
		slog.Float64("start", req.StartSeconds),
	)
	m.notify()
	return snap, nil
}

// Seek moves the session to seconds. Positions already produced by the running
// transcoder are served as is; anything else restarts it at the new offset.
func (m *Manager) Seek(id string, seconds float64) (domain.StreamingSession, error) {
	if seconds < 0 {
		seconds = 0
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return domain.StreamingSession{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	m.refreshLocked(s)
	s.info.LastAccess = m.now()
	if s.info.Buffered(seconds) {
		snap := s.info
		m.mu.Unlock()
		return snap, nil
	}
	retire, err := m.restartLocked(s, seconds)
	snap := s.info
	m.mu.Unlock()
	retire()
	m.notify()
	return snap, err
}

func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	teardown := m.stopLocked(s, "client", true)
	m.mu.Unlock()
	teardown()
	m.notify()
	return nil
}

func (m *Manager) Get(id string) (domain.StreamingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.StreamingSession{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	m.refreshLocked(s)
	return s.info, nil
}

func (m *Manager) List() []domain.StreamingSession {
	m.mu.Lock()
	out := make([]domain.StreamingSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		m.refreshLocked(s)
		out = append(out, s.info)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Open returns a playlist or segment of the session's current output and
// marks the session as in use.
func (m *Manager) Open(id, name string) (afero.File, error) {
	if !validOutputName(name) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidReference, name)
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	s.info.LastAccess = m.now()
	dir := s.dir
	m.mu.Unlock()

	f, err := m.fs.Open(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return nil, err
	}
	return f, nil
}

// WaitReady blocks until the session's playlist exists, the transcoder dies
// or ctx ends.
func (m *Manager) WaitReady(ctx context.Context, id string) error {
	ticker := time.NewTicker(playlistPoll)
	defer ticker.Stop()
	for {
		m.mu.Lock()
		s, ok := m.sessions[id]
		var (
			dir  string
			proc Transcoder
		)
		if ok {
			dir, proc = s.dir, s.proc
		}
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		if _, err := m.fs.Stat(filepath.Join(dir, PlaylistName)); err == nil {
			return nil
		}
		if proc != nil {
			select {
			case <-proc.Done():
				if err := proc.Err(); err != nil {
					return fmt.Errorf("transcoder exited: %w", err)
				}
			default:
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown stops the reaper and every session. No session can be created
// afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	teardowns := make([]func(), 0, len(m.sessions))
	for _, s := range m.sessions {
		teardowns = append(teardowns, m.stopLocked(s, "shutdown", true))
	}
	m.mu.Unlock()

	close(m.reaperStop)

	var wg conc.WaitGroup
	for _, fn := range teardowns {
		wg.Go(fn)
	}
	wg.Wait()
	m.cancel()
	m.notify()
}

func (m *Manager) reapIdle() int {
	now := m.now()
	m.mu.Lock()
	var teardowns []func()
	for _, s := range m.sessions {
		if now.Sub(s.info.LastAccess) > m.cfg.IdleTimeout {
			m.logger.Info("transcode session idle", slog.String("sessionId", s.info.ID))
			teardowns = append(teardowns, m.stopLocked(s, "idle", true))
		}
	}
	m.mu.Unlock()
	for _, fn := range teardowns {
		fn()
	}
	if len(teardowns) > 0 {
		m.notify()
	}
	return len(teardowns)
}

func (m *Manager) spawnLocked(s *session) error {
	dir := filepath.Join(s.root, fmt.Sprintf("g%d", s.gen))
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	m.settingsMu.RLock()
	args := buildArgs(argConfig{
		Input:           s.info.Path,
		SeekSeconds:     s.info.StartSeconds,
		AudioStream:     s.info.AudioTrack,
		Quality:         s.info.Quality,
		SegmentDuration: m.cfg.SegmentDuration,
		Preset:          m.preset,
		CRF:             m.crf,
		AudioBitrate:    m.audioBitrate,
	})
	m.settingsMu.RUnlock()

	proc, err := m.launch(m.ctx, dir, args)
	if err != nil {
		metrics.TranscodeFailuresTotal.Inc()
		_ = m.fs.RemoveAll(dir)
		return fmt.Errorf("start transcoder: %w", err)
	}
	metrics.TranscodeStartsTotal.Inc()
	s.dir = dir
	s.proc = proc
	go m.watch(s.info.ID, proc)
	return nil
}

// restartLocked replaces the session's transcoder with one starting at
// seconds. The returned func stops the old process and must run after m.mu
// is released, before the caller returns.
func (m *Manager) restartLocked(s *session, seconds float64) (func(), error) {
	m.setStateLocked(s, domain.SessionSeeking)
	retire := m.retireLocked(s)
	s.gen++
	s.info.StartSeconds = seconds
	s.info.Encoded = 0
	if err := m.spawnLocked(s); err != nil {
		teardown := m.stopLocked(s, "failed", true)
		return func() {
			retire()
			teardown()
		}, err
	}
	s.info.Restarts++
	m.setStateLocked(s, domain.SessionRunning)
	metrics.TranscodeRestartsTotal.WithLabelValues("seek").Inc()
	m.logger.Info("transcode session restarted",
		slog.String("sessionId", s.info.ID),
		slog.Float64("start", seconds),
		slog.Int("restarts", s.info.Restarts),
	)
	return retire, nil
}

// stopLocked unregisters s and returns the teardown to run once m.mu is
// released. Killing ffmpeg can take up to killWaitDelay and must not hold
// up other sessions. release is false when a replacement keeps the slot.
func (m *Manager) stopLocked(s *session, reason string, release bool) func() {
	m.detachLocked(s)
	metrics.TranscodeActiveSessions.Set(float64(len(m.sessions)))
	retire := m.retireLocked(s)
	id, root := s.info.ID, s.root
	return func() {
		retire()
		m.teardown(id, root, reason, release)
	}
}

func (m *Manager) detachLocked(s *session) {
	m.refreshLocked(s)
	m.setStateLocked(s, domain.SessionStopped)
	delete(m.sessions, s.info.ID)
	key := ownerKey{client: s.info.ClientID, path: s.info.Path}
	if m.owners[key] == s.info.ID {
		delete(m.owners, key)
	}
}

// teardown removes a stopped session's output and frees its slot.
func (m *Manager) teardown(id, root, reason string, release bool) {
	if err := m.fs.RemoveAll(root); err != nil {
		m.logger.Warn("remove session dir failed", slog.String("dir", root), slog.String("error", err.Error()))
	}
	if release {
		m.sem.Release(1)
	}
	metrics.TranscodeStopsTotal.WithLabelValues(reason).Inc()
	m.logger.Info("transcode session stopped",
		slog.String("sessionId", id),
		slog.String("reason", reason),
	)
}

// retireLocked unhooks the current transcoder from s. The returned func
// stops it and removes its output directory.
func (m *Manager) retireLocked(s *session) func() {
	proc, dir := s.proc, s.dir
	s.proc, s.dir = nil, ""
	return func() {
		if proc != nil {
			proc.Stop()
		}
		if dir != "" {
			if err := m.fs.RemoveAll(dir); err != nil {
				m.logger.Warn("remove output dir failed", slog.String("dir", dir), slog.String("error", err.Error()))
			}
		}
	}
}

func (m *Manager) refreshLocked(s *session) {
	if s.proc != nil {
		s.info.Encoded = s.proc.Progress()
	}
}

func (m *Manager) setStateLocked(s *session, to domain.SessionState) {
	if s.info.State == to {
		return
	}
	if !domain.CanTransition(s.info.State, to) {
		m.logger.Error("invalid session transition",
			slog.String("sessionId", s.info.ID),
			slog.String("from", string(s.info.State)),
			slog.String("to", string(to)),
		)
	}
	s.info.State = to
}

// watch reports processes that exit while still owned by a session.
func (m *Manager) watch(id string, proc Transcoder) {
	<-proc.Done()
	m.mu.Lock()
	s, ok := m.sessions[id]
	current := ok && s.proc == proc
	if current {
		m.refreshLocked(s)
	}
	m.mu.Unlock()
	if !current {
		return
	}
	if err := proc.Err(); err != nil {
		metrics.TranscodeFailuresTotal.Inc()
		attrs := []any{slog.String("sessionId", id), slog.String("error", err.Error())}
		if p, ok := proc.(*Process); ok {
			attrs = append(attrs, slog.String("stderr", p.Stderr()))
		}
		m.logger.Warn("transcoder exited", attrs...)
	} else {
		m.logger.Info("transcode finished", slog.String("sessionId", id))
	}
	m.notify()
}

func validOutputName(name string) bool {
	if name == PlaylistName {
		return true
	}
	if filepath.Base(name) != name || strings.Contains(name, "..") {
		return false
	}
	digits, ok := strings.CutPrefix(name, "seg-")
	if !ok {
		return false
	}
	digits, ok = strings.CutSuffix(digits, ".ts")
	if !ok || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Encoding settings, applied to transcoders started after the update.

func (m *Manager) EncodingPreset() string {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.preset
}

func (m *Manager) EncodingCRF() int {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.crf
}

func (m *Manager) EncodingAudioBitrate() string {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.audioBitrate
}

func (m *Manager) UpdateEncodingSettings(preset string, crf int, audioBitrate string) {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()
	if preset != "" {
		m.preset = preset
	}
	if crf > 0 {
		m.crf = crf
	}
	if audioBitrate != "" {
		m.audioBitrate = audioBitrate
	}
}
