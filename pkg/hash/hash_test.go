// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	sig := Hash([]byte("foo"), []byte("bar"))
	assert.Equal(t, sig, Hash([]byte("foobar")))
	assert.Equal(t, "8843d7f92416211de9ebb963ff4ce28125932878", sig.String())
	assert.Equal(t, sig.String(), String([]byte("foobar")))
	assert.NotEqual(t, sig, Hash([]byte("foobaz")))
}
