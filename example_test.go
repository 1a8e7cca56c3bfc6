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

package aiorwlock_test

import (
	"context"
	"fmt"

	"github.com/ezeeyahoo/aiorwlock"
)

func ExampleRWLock() {
	ctx := context.Background()
	lock := aiorwlock.New()

	if err := lock.ReaderLock().Acquire(ctx); err != nil {
		panic(err)
	}
	fmt.Println(lock)

	// The same task may take the read lock again while it still holds it.
	if err := lock.ReaderLock().Acquire(ctx); err != nil {
		panic(err)
	}
	if err := lock.ReaderLock().Release(); err != nil {
		panic(err)
	}
	if err := lock.ReaderLock().Release(); err != nil {
		panic(err)
	}
	fmt.Println(lock)

	// Holding the read lock forbids taking the write lock.
	if err := lock.ReaderLock().Acquire(ctx); err != nil {
		panic(err)
	}
	fmt.Println(lock.WriterLock().Acquire(ctx))
	if err := lock.ReaderLock().Release(); err != nil {
		panic(err)
	}

	// Output:
	// <RWLock: <ReaderLock: [locked]> <WriterLock: [unlocked]>>
	// <RWLock: <ReaderLock: [unlocked]> <WriterLock: [unlocked]>>
	// aiorwlock: cannot upgrade lock from read to write
}
