package agent

import (
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fleetd/internal/model"
	"fleetd/pkg/constants"
)

// Executor runs dispatched commands in a subprocess and reports progress
// as it happens: zero or more output chunks followed by exactly one
// terminal result.
type Executor struct {
	defaultTimeout time.Duration
}

// NewExecutor creates an executor. defaultTimeout applies to task requests
// that carry no timeout of their own.
func NewExecutor(defaultTimeout time.Duration) *Executor {
	return &Executor{defaultTimeout: defaultTimeout}
}

// Execute starts the command. The chunks channel closes after the last
// output fragment; result then delivers exactly one terminal report.
func (e *Executor) Execute(req *model.TaskRequest) (<-chan model.StreamChunk, <-chan model.TaskResultMessage) {
	chunks := make(chan model.StreamChunk, 64)
	result := make(chan model.TaskResultMessage, 1)
	go e.run(req, chunks, result)
	return chunks, result
}

func (e *Executor) run(req *model.TaskRequest, chunks chan<- model.StreamChunk, result chan<- model.TaskResultMessage) {
	defer close(result)
	start := time.Now()

	timeout := e.defaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Millisecond
	}

	cmd := exec.Command("sh", "-c", req.Command)
	if req.Cwd != "" {
		cmd.Dir = req.Cwd
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		close(chunks)
		result <- spawnFailure(req.TaskID, err, start)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		close(chunks)
		result <- spawnFailure(req.TaskID, err, start)
		return
	}

	if err := cmd.Start(); err != nil {
		close(chunks)
		result <- spawnFailure(req.TaskID, err, start)
		return
	}

	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cmd.Process.Kill()
	})

	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go drain(req.TaskID, "stdout", stdout, &outBuf, chunks, &wg)
	go drain(req.TaskID, "stderr", stderr, &errBuf, chunks, &wg)
	wg.Wait()

	waitErr := cmd.Wait()
	timer.Stop()
	close(chunks)

	if timedOut.Load() {
		code := constants.ExitCodeTimeout
		result <- model.TaskResultMessage{
			TaskID:   req.TaskID,
			ExitCode: &code,
			Output:   outBuf.String(),
			Error:    "process exceeded time limit",
			Duration: 0,
		}
		return
	}

	report := model.TaskResultMessage{
		TaskID:   req.TaskID,
		Output:   outBuf.String(),
		Error:    errBuf.String(),
		Duration: time.Since(start).Milliseconds(),
	}
	switch waitErr := waitErr.(type) {
	case nil:
		code := 0
		report.ExitCode = &code
	case *exec.ExitError:
		code := waitErr.ExitCode()
		report.ExitCode = &code
		if report.Error == "" {
			report.Error = waitErr.Error()
		}
	default:
		report.Error = waitErr.Error()
	}
	result <- report
}

// drain forwards subprocess output as chunks while accumulating the full
// text for the terminal report. Chunks from one stream keep generation
// order.
func drain(taskID, stream string, r io.Reader, buf *strings.Builder, chunks chan<- model.StreamChunk, wg *sync.WaitGroup) {
	defer wg.Done()
	b := make([]byte, 4096)
	for {
		n, err := r.Read(b)
		if n > 0 {
			data := string(b[:n])
			buf.WriteString(data)
			chunks <- model.StreamChunk{
				TaskID:    taskID,
				Stream:    stream,
				Data:      data,
				Timestamp: time.Now().UnixMilli(),
			}
		}
		if err != nil {
			return
		}
	}
}

func spawnFailure(taskID string, err error, start time.Time) model.TaskResultMessage {
	return model.TaskResultMessage{
		TaskID:   taskID,
		ExitCode: nil,
		Error:    err.Error(),
		Duration: time.Since(start).Milliseconds(),
	}
}
