package translate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/sirupsen/logrus"
)

// workerScript loads one MarianMT model and answers JSON-line requests on stdin.
const workerScript = `
import sys
import json
import argparse
from transformers import pipeline

parser = argparse.ArgumentParser()
parser.add_argument("--model", required=True)
args = parser.parse_args()

pipe = pipeline("translation", model=args.model)
print(json.dumps({"ready": True}))
sys.stdout.flush()

for line in sys.stdin:
    try:
        request = json.loads(line.strip())
        out = pipe(request.get("text", ""), max_length=request.get("max_length", 512))
        print(json.dumps({"success": True, "translated_text": out[0]["translation_text"]}))
    except Exception as e:
        print(json.dumps({"success": False, "error": str(e)}))
    sys.stdout.flush()
`

// PythonOptions configures the subprocess engine.
type PythonOptions struct {
	// Python is the interpreter to run. Defaults to python3.
	Python string
	// Script is a worker script path. When empty the embedded worker is run with -c.
	Script string
	// StartTimeout bounds how long model loading may take. Defaults to 5 minutes.
	StartTimeout time.Duration
}

// PythonTranslator is a Handle backed by one long-lived Python process that
// holds a single translation model in memory. The process is started when the
// handle is created and restarted on the next call if it dies.
type PythonTranslator struct {
	direction catalog.Direction
	model     string
	opts      PythonOptions

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	// pending is the reply to a request whose caller stopped waiting. It is
	// drained before the next request is written.
	pending <-chan workerLine
	closed  bool
	logger  *logrus.Entry
}

type workerLine struct {
	line []byte
	err  error
}

type workerRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

type workerResponse struct {
	Ready          bool   `json:"ready,omitempty"`
	Success        bool   `json:"success"`
	TranslatedText string `json:"translated_text,omitempty"`
	Error          string `json:"error,omitempty"`
}

// StartPythonTranslator starts a worker process for dir and waits until its
// model is loaded.
func StartPythonTranslator(ctx context.Context, opts PythonOptions, dir catalog.Direction, model string, logger *logrus.Logger) (*PythonTranslator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 5 * time.Minute
	}

	pt := &PythonTranslator{
		direction: dir,
		model:     model,
		opts:      opts,
		logger: logger.WithFields(logrus.Fields{
			"direction": dir.String(),
			"model":     model,
		}),
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()
	if err := pt.ensureProcess(ctx); err != nil {
		return nil, err
	}
	return pt, nil
}

// ensureProcess starts the worker if it is not running. Model loading is
// bounded by StartTimeout, not by the caller's cancellation. Caller holds pt.mu.
func (pt *PythonTranslator) ensureProcess(ctx context.Context) error {
	if pt.closed {
		return ErrClosed
	}
	if pt.process != nil {
		return nil
	}

	var args []string
	if pt.opts.Script != "" {
		args = []string{pt.opts.Script, "--model", pt.model}
	} else {
		args = []string{"-c", workerScript, "--model", pt.model}
	}

	// Not CommandContext: the worker outlives the request that started it.
	cmd := exec.Command(pt.opts.Python, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start translation worker: %w", err)
	}

	pt.process = cmd
	pt.stdin = stdin
	pt.stdout = bufio.NewReader(stdout)

	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pt.opts.StartTimeout)
	defer cancel()

	startTime := time.Now()
	var resp workerResponse
	select {
	case <-startCtx.Done():
		pt.kill()
		return fmt.Errorf("translation worker did not become ready: %w", startCtx.Err())
	case l := <-pt.readLine():
		if resp, err = pt.decode(l); err != nil {
			return fmt.Errorf("translation worker did not become ready: %w", err)
		}
	}
	if !resp.Ready {
		pt.kill()
		return fmt.Errorf("translation worker did not become ready: %s", resp.Error)
	}

	pt.logger.WithFields(logrus.Fields{
		"pid":         cmd.Process.Pid,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Translation worker started")
	return nil
}

// readLine reads the next reply line in the background. Caller holds pt.mu.
func (pt *PythonTranslator) readLine() <-chan workerLine {
	reader := pt.stdout
	ch := make(chan workerLine, 1)
	go func() {
		line, err := reader.ReadBytes('\n')
		ch <- workerLine{line: line, err: err}
	}()
	return ch
}

// decode parses a reply line. A broken stream kills the worker. Caller holds pt.mu.
func (pt *PythonTranslator) decode(l workerLine) (workerResponse, error) {
	if l.err != nil {
		pt.kill()
		return workerResponse{}, fmt.Errorf("failed to read response: %w", l.err)
	}
	var resp workerResponse
	if err := json.Unmarshal(l.line, &resp); err != nil {
		pt.kill()
		return workerResponse{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp, nil
}

// drain discards the reply owed to an abandoned request so the stream is
// back in step. Caller holds pt.mu.
func (pt *PythonTranslator) drain(ctx context.Context) error {
	if pt.pending == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l := <-pt.pending:
		pt.pending = nil
		if l.err != nil {
			pt.kill()
		}
		return nil
	}
}

// kill stops the worker so the next call starts a fresh one. Caller holds pt.mu.
func (pt *PythonTranslator) kill() {
	if pt.process == nil {
		return
	}
	if pt.stdin != nil {
		pt.stdin.Close()
	}
	if pt.process.Process != nil {
		pt.process.Process.Kill()
	}
	pt.process.Wait()
	pt.logger.Warn("Translation worker stopped")

	pt.process = nil
	pt.stdin = nil
	pt.stdout = nil
	pt.pending = nil
}

// Translate sends one request to the worker and waits for its answer.
func (pt *PythonTranslator) Translate(ctx context.Context, text string, maxLength int) (string, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.closed {
		return "", ErrClosed
	}
	if err := pt.drain(ctx); err != nil {
		return "", err
	}
	if err := pt.ensureProcess(ctx); err != nil {
		return "", err
	}

	requestJSON, err := json.Marshal(workerRequest{Text: text, MaxLength: maxLength})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := pt.stdin.Write(append(requestJSON, '\n')); err != nil {
		pt.kill()
		return "", fmt.Errorf("failed to write to worker: %w", err)
	}

	reply := pt.readLine()
	var resp workerResponse
	select {
	case <-ctx.Done():
		// The worker keeps its model; its reply is discarded by the next call.
		pt.pending = reply
		return "", ctx.Err()
	case l := <-reply:
		if resp, err = pt.decode(l); err != nil {
			return "", err
		}
	}
	if !resp.Success {
		errorMsg := resp.Error
		if errorMsg == "" {
			errorMsg = "unknown error"
		}
		return "", fmt.Errorf("translation failed: %s", errorMsg)
	}

	return resp.TranslatedText, nil
}

// Close stops the worker process. The handle cannot be used afterwards.
func (pt *PythonTranslator) Close() error {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.closed = true
	pt.kill()
	return nil
}
