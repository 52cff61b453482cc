package decompiler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AndroguardPool androguard 常驻进程池（复用 Python 进程，减少每个样本的启动开销）。
// 每个样本的反编译都在独立的 OS 进程里执行：一个样本触发 segfault 或死循环
// 只会损失对应的 worker 进程，不会污染其他样本的处理。
type AndroguardPool struct {
	pythonPath string
	scriptPath string
	poolSize   int
	timeout    time.Duration

	free   chan *process
	logger *logrus.Logger

	mu     sync.Mutex
	closed bool
	procs  []*process
}

// process 单个 Python worker 进程
type process struct {
	id     int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	active bool
}

// request/response 与 Python 脚本之间的单行 JSON 协议
type request struct {
	APKPath string `json:"apk_path"`
}

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Unit  *Unit  `json:"unit,omitempty"`
}

// NewAndroguardPool 启动进程池。任何一个进程启动失败都会回滚已启动的进程。
func NewAndroguardPool(pythonPath, scriptPath string, poolSize int, timeout time.Duration, logger *logrus.Logger) (*AndroguardPool, error) {
	if poolSize <= 0 {
		poolSize = 3
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	pool := &AndroguardPool{
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		poolSize:   poolSize,
		timeout:    timeout,
		free:       make(chan *process, poolSize),
		logger:     logger,
	}

	for i := 0; i < poolSize; i++ {
		proc, err := pool.startProcess(i)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to start decompiler process %d: %w", i, err)
		}
		pool.procs = append(pool.procs, proc)
		pool.free <- proc
	}

	logger.WithField("pool_size", poolSize).Info("Androguard process pool started")
	return pool, nil
}

// startProcess 启动单个常驻 Python 进程（--server-mode：stdin 收任务，stdout 回结果）
func (p *AndroguardPool) startProcess(id int) (*process, error) {
	cmd := exec.Command(p.pythonPath, "-u", p.scriptPath, "--server-mode")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start python process: %w", err)
	}

	go p.drainStderr(id, stderr)

	p.logger.WithField("worker_id", id).Debug("Decompiler worker process started")

	return &process{
		id:     id,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		active: true,
	}, nil
}

// drainStderr 把 Python 进程的 stderr 转到日志
func (p *AndroguardPool) drainStderr(id int, stderr io.ReadCloser) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		p.logger.WithFields(logrus.Fields{
			"worker_id": id,
			"stderr":    scanner.Text(),
		}).Debug("Decompiler worker stderr")
	}
}

// Decompile 同步反编译一个 APK。
// 从空闲队列取一个 worker 进程，写入任务，带超时读取结果。
// I/O 失败或超时的进程被视为不可信，杀掉并原位重启。
func (p *AndroguardPool) Decompile(ctx context.Context, apkPath string) (*Unit, error) {
	var proc *process
	select {
	case proc = <-p.free:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	unit, err := p.runTask(ctx, proc, apkPath)
	if err != nil {
		if _, isReject := err.(*Error); isReject {
			// 反编译器正常拒绝样本：进程仍然可用
			p.free <- proc
			return nil, err
		}
		// 超时或管道错误：进程状态未知，重启后归还
		p.restart(proc)
		return nil, err
	}

	p.free <- proc
	return unit, nil
}

func (p *AndroguardPool) runTask(ctx context.Context, proc *process, apkPath string) (*Unit, error) {
	body, err := json.Marshal(&request{APKPath: apkPath})
	if err != nil {
		return nil, err
	}

	if _, err := fmt.Fprintf(proc.stdin, "%s\n", body); err != nil {
		return nil, fmt.Errorf("failed to write task to decompiler: %w", err)
	}

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := proc.stdout.ReadString('\n')
		if err != nil {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case line := <-lineCh:
		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse decompiler result: %w", err)
		}
		if !resp.OK || resp.Unit == nil {
			return nil, &Error{APKPath: apkPath, Msg: resp.Error}
		}
		return resp.Unit, nil

	case err := <-errCh:
		return nil, fmt.Errorf("failed to read decompiler result: %w", err)

	case <-timer.C:
		p.logger.WithFields(logrus.Fields{
			"worker_id": proc.id,
			"apk_path":  apkPath,
		}).Warn("Decompilation timeout")
		return nil, context.DeadlineExceeded

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// restart 杀掉失效进程并在同一槽位启动新进程
func (p *AndroguardPool) restart(proc *process) {
	proc.active = false
	proc.stdin.Close()
	if proc.cmd.Process != nil {
		proc.cmd.Process.Kill()
		proc.cmd.Wait()
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	fresh, err := p.startProcess(proc.id)
	if err != nil {
		p.logger.WithError(err).WithField("worker_id", proc.id).Error("Failed to restart decompiler worker")
		return
	}

	p.mu.Lock()
	p.procs[proc.id] = fresh
	p.mu.Unlock()
	p.free <- fresh
}

// Close 停止进程池
func (p *AndroguardPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	procs := p.procs
	p.mu.Unlock()

	for _, proc := range procs {
		if proc != nil && proc.cmd != nil && proc.cmd.Process != nil {
			proc.stdin.Close()
			proc.cmd.Process.Kill()
			proc.cmd.Wait()
		}
	}

	p.logger.Info("Androguard process pool stopped")
}
