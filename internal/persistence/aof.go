// Append log. Generalizes aof/aof.go's async-sink idiom (task channel,
// background goroutine, Flush() barrier for tests, Close() drain-then-sync)
// to all three appendfsync levels spec.md §6 names: always syncs inline
// before the write is acknowledged, everysec relies on the same 1s ticker,
// no never syncs on the ticker and leaves flushing to the OS (only Flush
// and Close sync explicitly). The rewrite/BGREWRITEAOF
// machinery the original had is dropped — see DESIGN.md — since no
// command table entry exercises it.
package persistence

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Fsync int

const (
	FsyncAlways Fsync = iota
	FsyncEverysec
	FsyncNo
)

type aofTask struct {
	line      []byte
	syncDone  chan error // non-nil only for FsyncAlways writes
	flushDone chan struct{}
}

// AppendLog is the asynchronous sink for write commands. Every line is a
// command's wire-form bytes with embedded \r\n escaped to the literal
// four characters `\r\n`, per spec.md §6, so the file stays one line per
// command regardless of which frame kinds the command's args encode to.
type AppendLog struct {
	file  *os.File
	fsync Fsync
	log   *logrus.Logger

	ch     chan *aofTask
	mu     sync.Mutex
	chMu   sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func OpenAppendLog(filename string, fsync Fsync, log *logrus.Logger) (*AppendLog, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &AppendLog{
		file:  f,
		fsync: fsync,
		log:   log,
		ch:    make(chan *aofTask, 1000),
	}
	a.wg.Add(1)
	go a.run()
	return a, nil
}

// EscapeLine replaces every "\r\n" in frame with the literal four
// characters \,r,\,n so the line can be terminated by a real newline.
func EscapeLine(frame []byte) []byte {
	return []byte(strings.ReplaceAll(string(frame), "\r\n", `\r\n`))
}

// UnescapeLine reverses EscapeLine, used during replay.
func UnescapeLine(line []byte) []byte {
	s := strings.ReplaceAll(string(line), `\r\n`, "\r\n")
	return []byte(s)
}

// Append queues frame's escaped form for writing. At FsyncAlways, Append
// blocks until the line has been written and fsynced — the "acknowledged
// only after durable" rule spec.md §4.5 requires for that level; at the
// other two levels it returns once the line is merely queued.
func (a *AppendLog) Append(frame []byte) error {
	line := EscapeLine(frame)

	task := &aofTask{line: line}
	var done chan error
	if a.fsync == FsyncAlways {
		done = make(chan error, 1)
		task.syncDone = done
	}

	a.chMu.Lock()
	if a.closed {
		a.chMu.Unlock()
		return errors.New("persistence: append log closed")
	}
	a.ch <- task
	a.chMu.Unlock()

	if done != nil {
		return <-done
	}
	return nil
}

// Flush blocks until every line queued before this call has been written
// and fsynced — a test barrier so assertions never race the background
// goroutine.
func (a *AppendLog) Flush() error {
	done := make(chan struct{})
	a.chMu.Lock()
	if a.closed {
		a.chMu.Unlock()
		return errors.New("persistence: append log closed")
	}
	a.ch <- &aofTask{flushDone: done}
	a.chMu.Unlock()
	<-done
	return nil
}

func (a *AppendLog) run() {
	defer a.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case task, ok := <-a.ch:
			if !ok {
				return
			}
			a.handleTask(task)
		case <-ticker.C:
			if a.fsync == FsyncEverysec {
				a.mu.Lock()
				_ = a.file.Sync()
				a.mu.Unlock()
			}
		}
	}
}

func (a *AppendLog) handleTask(task *aofTask) {
	if task.line != nil {
		a.mu.Lock()
		_, err := a.file.Write(append(task.line, '\n'))
		if err != nil {
			a.log.WithError(err).Error("append log write failed")
		}
		if task.syncDone != nil {
			serr := a.file.Sync()
			if err == nil {
				err = serr
			}
		}
		a.mu.Unlock()
		if task.syncDone != nil {
			task.syncDone <- err
		}
	}
	if task.flushDone != nil {
		a.mu.Lock()
		_ = a.file.Sync()
		a.mu.Unlock()
		close(task.flushDone)
	}
}

func (a *AppendLog) Close() {
	a.chMu.Lock()
	if a.closed {
		a.chMu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.chMu.Unlock()

	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.file.Sync()
	_ = a.file.Close()
}

// ReplayLines reads every line of filename, unescapes it, and invokes fn
// with the raw frame bytes for each one, in order. fn is responsible for
// decoding the frame (via resp.DecodeFrames) and dispatching it.
func ReplayLines(filename string, fn func(frame []byte) error) error {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := UnescapeLine(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
