package transcode

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestProcessStopTerminatesChild(t *testing.T) {
	bin, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	p := NewProcess(context.Background(), bin, []string{"30"}, t.TempDir())
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if p.Err() == nil {
		t.Fatal("expected non-nil exit error for a killed process")
	}
	p.Stop()
}

func TestProcessStartFailure(t *testing.T) {
	p := NewProcess(context.Background(), "/nonexistent/ffmpeg", nil, t.TempDir())
	if err := p.Start(); err == nil {
		t.Fatal("expected start error")
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("Done must be closed after a failed start")
	}
	p.Stop()
}
