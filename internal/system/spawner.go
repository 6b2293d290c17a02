package system

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/rook-computer/deckx/internal/logging"
	"golang.org/x/sys/unix"
)

// maxLine bounds one output line. Dynamic buttons may emit inline data URIs.
const maxLine = 16 << 20

// Process is a running external command.
type Process interface {
	// Output delivers one chunk per line of stdout and is closed when the
	// command exits or is killed.
	Output() <-chan []byte
	// Kill terminates the command and everything it started. It is safe to
	// call more than once and after the command has exited.
	Kill()
}

// ShellSpawner starts commands through the shell, each in its own process
// group.
type ShellSpawner struct {
	Shell  string
	Logger logging.Logger
}

func NewShellSpawner(logger logging.Logger) *ShellSpawner {
	if logger == nil {
		logger = logging.Noop{}
	}
	return &ShellSpawner{Shell: "/bin/sh", Logger: logger}
}

func (s *ShellSpawner) Spawn(command string) (Process, error) {
	cmd := exec.Command(s.Shell, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &ringBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}

	p := &shellProcess{
		cmd:  cmd,
		out:  make(chan []byte),
		done: make(chan struct{}),
	}
	go p.run(stdout, stderr, command, s.Logger)
	return p, nil
}

type shellProcess struct {
	cmd  *exec.Cmd
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (p *shellProcess) Output() <-chan []byte { return p.out }

func (p *shellProcess) Kill() {
	p.once.Do(func() {
		close(p.done)
		// Negative pid signals the whole group.
		_ = unix.Kill(-p.cmd.Process.Pid, unix.SIGTERM)
	})
}

func (p *shellProcess) killed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *shellProcess) run(stdout io.Reader, stderr *ringBuffer, command string, logger logging.Logger) {
	defer close(p.out)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case p.out <- line:
		case <-p.done:
			_, _ = io.Copy(io.Discard, stdout)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Errorf("spawn", "%q: read output: %v", command, err)
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := p.cmd.Wait(); err != nil && !p.killed() {
		msg := err.Error()
		if s := stderr.String(); s != "" {
			msg = msg + ": " + s
		}
		logger.Errorf("spawn", "%q failed: %s", command, msg)
	}
}

// ringBuffer keeps the last max bytes written to it.
type ringBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max <= 0 {
		return len(p), nil
	}
	if len(p) >= r.max {
		r.buf = append(r.buf[:0], p[len(p)-r.max:]...)
		return len(p), nil
	}
	if len(r.buf)+len(p) > r.max {
		drop := len(r.buf) + len(p) - r.max
		r.buf = append(r.buf[drop:], p...)
		return len(p), nil
	}
	r.buf = append(r.buf, p...)
	return len(p), nil
}

func (r *ringBuffer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.buf)
}
