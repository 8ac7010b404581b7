// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/evofuzz/evofuzz/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpus(t *testing.T) {
	st, err := Open(t.TempDir())
	require.NoError(t, err)
	inputs := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, data := range inputs {
		require.NoError(t, st.Save(hash.String(data), data))
	}
	require.NoError(t, st.Remove(hash.String(inputs[1])))
	// Removing a missing entry is not an error.
	require.NoError(t, st.Remove(hash.String(inputs[1])))

	entries, errs := st.Load()
	assert.Empty(t, errs)
	got := map[string]string{}
	for _, ent := range entries {
		got[ent.Name] = string(ent.Data)
	}
	assert.Equal(t, map[string]string{
		hash.String(inputs[0]): "first",
		hash.String(inputs[2]): "third",
	}, got)
}

func TestLoadSkipsBadEntries(t *testing.T) {
	st, err := Open(t.TempDir())
	require.NoError(t, err)
	good := []byte("good")
	require.NoError(t, st.Save(hash.String(good), good))
	require.NoError(t, st.Save(hash.String([]byte("original")), []byte("corrupted")))
	require.NoError(t, os.Mkdir(filepath.Join(st.Path(), "corpus", "unreadable"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(st.Path(), "corpus", ".tmp123"), []byte("x"), 0644))

	entries, errs := st.Load()
	require.Len(t, entries, 1)
	assert.Equal(t, "good", string(entries[0].Data))
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, ErrCorpusIO), "%v", err)
	}
}

func TestPrune(t *testing.T) {
	st, err := Open(t.TempDir())
	require.NoError(t, err)
	keep := []byte("keep")
	drop := []byte("drop")
	require.NoError(t, st.Save(hash.String(keep), keep))
	require.NoError(t, st.Save(hash.String(drop), drop))
	require.NoError(t, st.Save(hash.String([]byte("original")), []byte("corrupted")))
	require.NoError(t, os.WriteFile(filepath.Join(st.Path(), "corpus", ".tmp123"), []byte("x"), 0644))

	removed, errs := st.Prune(func(sig string) bool { return sig == hash.String(keep) })
	assert.Empty(t, errs)
	assert.Equal(t, 2, removed)
	entries, errs := st.Load()
	assert.Empty(t, errs)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", string(entries[0].Data))
	assert.FileExists(t, filepath.Join(st.Path(), "corpus", ".tmp123"))
}

func TestPending(t *testing.T) {
	st, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, st.Stage("proc0", []byte("a")))
	require.NoError(t, st.Stage("proc1", []byte("b")))
	require.NoError(t, st.Stage("proc0", []byte("c")))
	require.NoError(t, st.Unstage("proc1"))
	require.NoError(t, st.Unstage("proc1"))

	// Reopening keeps the pending inputs.
	st, err = Open(st.Path())
	require.NoError(t, err)
	entries, errs := st.Pending()
	assert.Empty(t, errs)
	assert.Equal(t, []Entry{{Name: "proc0", Data: []byte("c")}}, entries)
}

func TestSaveCrash(t *testing.T) {
	st, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, st.SaveCrash("timeout", []byte("input"), []byte("report")))
	require.NoError(t, st.SaveCrash("bad/sig", []byte("input2"), []byte("report2")))

	data, err := os.ReadFile(filepath.Join(st.CrashDir("timeout"), "input"))
	require.NoError(t, err)
	assert.Equal(t, "input", string(data))
	data, err = os.ReadFile(filepath.Join(st.CrashDir("bad/sig"), "report"))
	require.NoError(t, err)
	assert.Equal(t, "report2", string(data))

	crashes, err := st.Crashes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"timeout", hash.String([]byte("bad/sig"))}, crashes)
}

func TestPackUnpack(t *testing.T) {
	src, err := Open(t.TempDir())
	require.NoError(t, err)
	inputs := [][]byte{[]byte("first"), {}, bytes.Repeat([]byte{0xab}, 1000)}
	for _, data := range inputs {
		require.NoError(t, src.Save(hash.String(data), data))
	}
	buf := new(bytes.Buffer)
	n, errs := src.Pack(buf)
	assert.Empty(t, errs)
	assert.Equal(t, 3, n)

	dst, err := Open(t.TempDir())
	require.NoError(t, err)
	added, err := dst.Unpack(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	srcEntries, _ := src.Load()
	dstEntries, errs := dst.Load()
	assert.Empty(t, errs)
	assert.Equal(t, srcEntries, dstEntries)

	_, err = dst.Unpack(bytes.NewReader([]byte("not an archive")))
	assert.True(t, errors.Is(err, ErrCorpusIO), "%v", err)
}
