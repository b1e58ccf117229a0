// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"io"

	"github.com/sirupsen/logrus"
)

// noopLogger returns a logrus.FieldLogger that discards everything,
// the default when a caller builds a Pool without supplying its own
// logger. The hot allocate/deallocate paths never log regardless of
// which logger is installed; only cold-path failures do (PageCache
// exhaustion and a failed large-object allocation in Pool.Allocate),
// matching the level of logging
// the pack's own tiered cache component (weaviate-rfcs'
// adapters/repos/db/vector/cache/tiered_cache.go) keeps for an
// analogous tiered structure.
func noopLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
