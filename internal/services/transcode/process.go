package transcode

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	killWaitDelay  = 3 * time.Second
	maxStderrBytes = 8 << 10
)

// Process wraps one ffmpeg child. Stop always terminates the child and waits
// for it to be reaped.
type Process struct {
	cmd        *exec.Cmd
	cancel     context.CancelFunc
	progressUs atomic.Int64
	done       chan struct{}
	err        error
	stderr     *tailBuffer
	stopOnce   sync.Once
}

func NewProcess(ctx context.Context, binary string, args []string, dir string) *Process {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.WaitDelay = killWaitDelay
	return &Process{
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
		stderr: &tailBuffer{max: maxStderrBytes},
	}
}

// Start launches the process and begins reading -progress output from
// stdout.
func (p *Process) Start() error {
	progressR, progressW, pipeErr := os.Pipe()
	if pipeErr != nil {
		p.cmd.Stdout = io.Discard
	} else {
		p.cmd.Stdout = progressW
	}
	p.cmd.Stderr = p.stderr

	if err := p.cmd.Start(); err != nil {
		if pipeErr == nil {
			progressR.Close()
			progressW.Close()
		}
		p.err = err
		p.cancel()
		close(p.done)
		return err
	}

	if pipeErr == nil {
		progressW.Close()
		go p.parseProgress(progressR)
	}

	go func() {
		p.err = p.cmd.Wait()
		p.cancel()
		close(p.done)
	}()
	return nil
}

func (p *Process) Stop() {
	p.stopOnce.Do(p.cancel)
	<-p.done
}

func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err is the exit error. Only valid after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Progress returns seconds of output written so far.
func (p *Process) Progress() float64 {
	us := p.progressUs.Load()
	if us <= 0 {
		return 0
	}
	return float64(us) / 1e6
}

func (p *Process) Stderr() string {
	return strings.TrimSpace(p.stderr.String())
}

func (p *Process) parseProgress(r *os.File) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if us, ok := parseProgressLine(scanner.Text()); ok {
			p.progressUs.Store(us)
		}
	}
}

func parseProgressLine(line string) (int64, bool) {
	v, ok := strings.CutPrefix(line, "out_time_us=")
	if !ok {
		v, ok = strings.CutPrefix(line, "out_time_ms=")
	}
	if !ok {
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return us, true
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
