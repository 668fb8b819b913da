package domain

import (
	"errors"
	"time"
)

// SessionState is the lifecycle position of a transcode session.
type SessionState string

const (
	SessionCreated SessionState = "created"
	SessionRunning SessionState = "running"
	SessionSeeking SessionState = "seeking"
	SessionStopped SessionState = "stopped"
)

var ErrInvalidTransition = errors.New("invalid session transition")

var sessionTransitions = map[SessionState][]SessionState{
	SessionCreated: {SessionRunning, SessionStopped},
	SessionRunning: {SessionSeeking, SessionStopped},
	SessionSeeking: {SessionRunning, SessionStopped},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to SessionState) bool {
	for _, s := range sessionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Quality string

const (
	QualityOriginal Quality = "original"
	Quality1080p    Quality = "1080p"
	Quality720p     Quality = "720p"
	Quality480p     Quality = "480p"
)

func ParseQuality(s string) (Quality, bool) {
	switch Quality(s) {
	case "", QualityOriginal:
		return QualityOriginal, true
	case Quality1080p, Quality720p, Quality480p:
		return Quality(s), true
	}
	return "", false
}

// StreamingSession is the public view of a transcode session.
type StreamingSession struct {
	ID           string       `json:"id"`
	ClientID     string       `json:"clientId"`
	Path         string       `json:"-"`
	AudioTrack   int          `json:"audioTrack"`
	Quality      Quality      `json:"quality"`
	State        SessionState `json:"state"`
	StartSeconds float64      `json:"startSeconds"`
	Encoded      float64      `json:"encodedSeconds"`
	Restarts     int          `json:"restarts"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastAccess   time.Time    `json:"lastAccess"`
}

// Buffered reports whether position falls inside what the active transcoder
// has already produced.
func (s StreamingSession) Buffered(position float64) bool {
	return position >= s.StartSeconds && position <= s.StartSeconds+s.Encoded
}
