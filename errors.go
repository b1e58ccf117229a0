// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import "fmt"

// allocatorError reports an invariant violation inside the tiers —
// the Go analogue of runtime/malloc.go's throw("...") calls, which
// panic the runtime on conditions that should be provably impossible
// (a span missing from spanMap, a central free list that appears
// non-empty but walks to a nil head, and so on).
type allocatorError struct {
	op  string
	msg string
}

func (e *allocatorError) Error() string {
	return fmt.Sprintf("memorypool: %s: %s", e.op, e.msg)
}

// throw panics with an *allocatorError, mirroring the throw(msg
// string) helper in runtime/malloc.go and runtime/mcentral.go.
// It is used only for conditions the algorithm guarantees cannot
// occur in a correctly operating allocator — never for ordinary
// allocation exhaustion, which is reported as a nil return instead.
func throw(op, msg string) {
	panic(&allocatorError{op: op, msg: msg})
}
