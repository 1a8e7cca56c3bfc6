// Copyright 2026 The aiorwlock Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package aiorwlock implements a recursive reader-writer lock with writer
// preference.
//
// A RWLock maintains a pair of associated locks, one for read-only access
// and one for writing.  The read lock may be held simultaneously by multiple
// reader tasks, so long as there are no writers.  The write lock is
// exclusive.  A "task" here is a goroutine: the same goroutine may reacquire
// a lock it already holds (recursion), and the lock remembers which
// goroutines hold it so that recursion can be told apart from contention.
//
// Whether a requesting task is granted entry or parked depends on the mode
// the lock is currently held in, whether a writer is queued, and whether the
// requester is already among the owners:
//
//	+---------------+----------+------------------+---------------------+
//	|Request/Holding| Unlocked | Held for read    | Held for write      |
//	+---------------+----------+------------------+---------------------+
//	|Request read   |   Yes    | Yes, unless a    | Only recursively by |
//	|               |          | writer is queued | the writing task,   |
//	|               |          | (owners recurse  | granted as a further|
//	|               |          | regardless)      | write hold          |
//	|Request write  |   Yes    | No; owners get   | Only recursively by |
//	|               |          | ErrUpgrade       | the writing task    |
//	+---------------+----------+------------------+---------------------+
//
// The "unless a writer is queued" rule is the writer preference: once a task
// is parked inside a write acquire, fresh readers are held back until the
// lock drains to idle, so a steady stream of readers cannot starve the
// writer.  Tasks that already own the lock are exempt, since parking them
// behind their own queued peers would deadlock recursive code paths.
//
// Upgrading is not supported: a task holding the read lock that requests the
// write lock gets ErrUpgrade synchronously.  Draining the other readers out
// from under the upgrader cannot be done safely once a second upgrader
// exists, so the request is refused outright rather than left to deadlock.
package aiorwlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// ErrUpgrade is returned by the writer lock's Acquire when the calling task
// already holds the lock for reading.  The lock state is unchanged.
var ErrUpgrade = errors.New("aiorwlock: cannot upgrade lock from read to write")

// ErrNotHeld is returned by Release when the calling task holds no matching
// lock at that instant.  The lock state is unchanged.
var ErrNotHeld = errors.New("aiorwlock: release of an unacquired lock")

// lockMode records which grant path a hold was taken under, so that a
// release can be matched against the mode the lock is currently in.
type lockMode int

const (
	modeRead lockMode = iota
	modeWrite
)

// A hold is one successful acquisition that has not yet been released.
type hold struct {
	task int64
	mode lockMode
}

// core is the coordinator shared by the two lock handles.  All of its state
// is guarded by mu; tasks that cannot be granted entry park on the wake
// channel and recheck after each broadcast.
//
// state counts holds: positive is the number of read holds, negative the
// number of (necessarily same-task) write holds, zero is idle.  waiting
// counts tasks currently parked inside acquireWrite.  owning records one
// (task, mode) pair per grant; its length always equals |state|.
type core struct {
	mu      sync.Mutex
	wake    chan struct{}
	state   int
	waiting int
	owning  []hold // owners will be few, so a slice is not inefficient
}

func newCore() *core {
	return &core{wake: make(chan struct{})}
}

// owns reports whether task is among the current owners.
// Caller must hold c.mu.
func (c *core) owns(task int64) bool {
	for _, h := range c.owning {
		if h.task == task {
			return true
		}
	}
	return false
}

// broadcast resumes every parked task so that each rechecks its grant
// predicate.  Caller must hold c.mu.
func (c *core) broadcast() {
	close(c.wake)
	c.wake = make(chan struct{})
}

// tryAcquireRead attempts to grant task a read hold.  A false result with a
// nil error means the task must park.  Caller must hold c.mu.
func (c *core) tryAcquireRead(task int64) (bool, error) {
	if c.state < 0 {
		// Lock is in write mode.  See if it is ours and we can recurse;
		// the grant, if any, is a further write hold.
		return c.tryAcquireWrite(task)
	}

	// Writer preference: a queued writer holds back fresh readers.
	// Recursion is exempt, otherwise a reader taking a second hold
	// behind its own queued peers would deadlock itself.
	if c.waiting > 0 && !c.owns(task) {
		return false, nil
	}

	c.state++
	c.owning = append(c.owning, hold{task: task, mode: modeRead})
	return true, nil
}

// tryAcquireWrite attempts to grant task a write hold.  The lock must be
// idle or already held for writing by the same task; a task holding the
// lock for reading gets ErrUpgrade.  Caller must hold c.mu.
func (c *core) tryAcquireWrite(task int64) (bool, error) {
	if c.state == 0 || (c.state < 0 && c.owns(task)) {
		c.state--
		c.owning = append(c.owning, hold{task: task, mode: modeWrite})
		return true, nil
	}
	if c.state > 0 && c.owns(task) {
		return false, ErrUpgrade
	}
	return false, nil
}

// acquireRead takes the lock for shared read access, parking until the lock
// is idle, already shared with no queued writer, or recursively reentrant
// for the calling task.
func (c *core) acquireRead(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	task := goid.Get()

	c.mu.Lock()
	for {
		ok, err := c.tryAcquireRead(task)
		if ok || err != nil {
			c.mu.Unlock()
			return err
		}
		wake := c.wake
		c.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}
}

// acquireWrite takes the lock for exclusive write access, parking until the
// lock is idle or recursively reentrant for the calling task.  The waiting
// count is maintained for the full life of the wait, ensuring that readers
// yield to writers.
func (c *core) acquireWrite(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	task := goid.Get()

	c.mu.Lock()
	c.waiting++
	for {
		ok, err := c.tryAcquireWrite(task)
		if ok || err != nil {
			c.waiting--
			c.mu.Unlock()
			return err
		}
		wake := c.wake
		c.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			c.mu.Lock()
			c.waiting--
			c.mu.Unlock()
			return ctx.Err()
		}
		c.mu.Lock()
	}
}

// release drops one hold by the calling task.  The hold removed must match
// the mode the lock is currently in; if the task has no such hold, release
// fails with ErrNotHeld and the lock is unchanged.  When the last hold is
// dropped every parked task is resumed.  A release that leaves the lock
// held wakes no one: while the lock stays in read mode no writer's
// predicate can flip, and while it stays in write mode no non-owner's can.
func (c *core) release() error {
	return c.releaseTask(goid.Get())
}

func (c *core) releaseTask(task int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode := modeRead
	if c.state < 0 {
		mode = modeWrite
	}
	removed := false
	for i, h := range c.owning {
		if h.task == task && h.mode == mode {
			c.owning = append(c.owning[:i], c.owning[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return ErrNotHeld
	}

	if c.state > 0 {
		c.state--
	} else {
		c.state++
	}
	if c.state == 0 {
		c.broadcast()
	}
	return nil
}

// ReaderLock is the handle for read, or shared, access.
type ReaderLock struct {
	core   *core
	locked atomic.Bool
}

// Acquire takes the lock for shared read access, parking the calling task
// until the lock can be granted.  Acquire returns ctx's error if ctx is
// cancelled while parked; a task that gives up the wait leaves no trace in
// the lock state.
func (r *ReaderLock) Acquire(ctx context.Context) error {
	if err := r.core.acquireRead(ctx); err != nil {
		return err
	}
	r.locked.Store(true)
	return nil
}

// Release drops one hold by the calling task in the mode the lock is
// currently held in; while the lock is held for writing, that is a write
// hold.  Returns ErrNotHeld if the calling task holds no such lock.
func (r *ReaderLock) Release() error {
	if err := r.core.release(); err != nil {
		return err
	}
	r.locked.Store(false)
	return nil
}

func (r *ReaderLock) String() string {
	return fmt.Sprintf("<ReaderLock: [%s]>", status(r.locked.Load()))
}

// WriterLock is the handle for write, or exclusive, access.
type WriterLock struct {
	core   *core
	locked atomic.Bool
}

// Acquire takes the lock for exclusive write access, parking the calling
// task until the lock can be granted.  Returns ErrUpgrade if the calling
// task currently holds the lock for reading, and ctx's error if ctx is
// cancelled while parked.
func (w *WriterLock) Acquire(ctx context.Context) error {
	if err := w.core.acquireWrite(ctx); err != nil {
		return err
	}
	w.locked.Store(true)
	return nil
}

// Release drops one hold by the calling task in the mode the lock is
// currently held in; while the lock is held for reading, that is a read
// hold.  Returns ErrNotHeld if the calling task holds no such lock.
func (w *WriterLock) Release() error {
	if err := w.core.release(); err != nil {
		return err
	}
	w.locked.Store(false)
	return nil
}

func (w *WriterLock) String() string {
	return fmt.Sprintf("<WriterLock: [%s]>", status(w.locked.Load()))
}

// The per-handle locked flag is a display hint only; the core's owner list
// is the source of truth.  The flag exists so that String has something
// cheap and race-free to report.
func status(locked bool) string {
	if locked {
		return "locked"
	}
	return "unlocked"
}

// RWLock maintains a pair of associated locks, one for read-only access and
// one for writing, sharing a single coordinator.
type RWLock struct {
	reader ReaderLock
	writer WriterLock
}

// New returns a new, idle RWLock.
func New() *RWLock {
	c := newCore()
	l := &RWLock{}
	l.reader.core = c
	l.writer.core = c
	return l
}

// ReaderLock returns the lock used for read, or shared, access.
func (l *RWLock) ReaderLock() *ReaderLock {
	return &l.reader
}

// WriterLock returns the lock used for write, or exclusive, access.
func (l *RWLock) WriterLock() *WriterLock {
	return &l.writer
}

func (l *RWLock) String() string {
	return fmt.Sprintf("<RWLock: %s %s>", l.reader.String(), l.writer.String())
}
