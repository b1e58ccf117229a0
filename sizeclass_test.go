// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memorypool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassIndexBoundaries(t *testing.T) {
	cases := []struct {
		n     uintptr
		index int
	}{
		{0, 0},
		{1, 0},
		{alignment, 0},
		{alignment + 1, 1},
		{2 * alignment, 1},
		{maxBytes, freeListSize - 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.index, classIndex(c.n), "classIndex(%d)", c.n)
	}
}

func TestClassSizeRoundTrips(t *testing.T) {
	for i := 0; i < freeListSize; i++ {
		size := classSize(i)
		assert.Equal(t, i, classIndex(size), "classSize(%d) round-trip", i)
		assert.True(t, size%alignment == 0)
	}
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, uintptr(alignment), roundUp(1))
	assert.Equal(t, uintptr(alignment), roundUp(alignment))
	assert.Equal(t, uintptr(2*alignment), roundUp(alignment+1))
	assert.Equal(t, uintptr(0), roundUp(0))
}
