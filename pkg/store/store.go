// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package store persists the fuzzing corpus, inputs under execution and crash artifacts in a work directory:
//
//	<workdir>/corpus/<sig>           corpus inputs named by the hash of their contents
//	<workdir>/pending/<name>         inputs staged before execution
//	<workdir>/crashes/<sig>/input    crash reproducer
//	<workdir>/crashes/<sig>/report   crash report
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/evofuzz/evofuzz/pkg/hash"
	"github.com/evofuzz/evofuzz/pkg/osutil"
)

// ErrCorpusIO is wrapped by all errors related to reading and writing persisted inputs.
var ErrCorpusIO = errors.New("corpus I/O error")

type Dir struct {
	dir string
}

// Entry is a persisted input.
type Entry struct {
	Name string
	Data []byte
}

func Open(workdir string) (*Dir, error) {
	st := &Dir{dir: osutil.Abs(workdir)}
	for _, sub := range []string{"corpus", "pending", "crashes"} {
		if err := osutil.MkdirAll(filepath.Join(st.dir, sub)); err != nil {
			return nil, fmt.Errorf("%w: failed to create %v dir: %w", ErrCorpusIO, sub, err)
		}
	}
	return st, nil
}

func (st *Dir) Path() string {
	return st.dir
}

func (st *Dir) Stage(name string, data []byte) error {
	return st.write(filepath.Join(st.dir, "pending", name), data)
}

func (st *Dir) Unstage(name string) error {
	return st.remove(filepath.Join(st.dir, "pending", name))
}

func (st *Dir) Save(sig string, data []byte) error {
	return st.write(filepath.Join(st.dir, "corpus", sig), data)
}

func (st *Dir) Remove(sig string) error {
	return st.remove(filepath.Join(st.dir, "corpus", sig))
}

func (st *Dir) SaveCrash(sig string, data, report []byte) error {
	dir := st.CrashDir(sig)
	if err := osutil.MkdirAll(dir); err != nil {
		return fmt.Errorf("%w: %w", ErrCorpusIO, err)
	}
	if err := st.write(filepath.Join(dir, "input"), data); err != nil {
		return err
	}
	return st.write(filepath.Join(dir, "report"), report)
}

var safeName = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// CrashDir returns the directory with artifacts of the crash sig.
func (st *Dir) CrashDir(sig string) string {
	if !safeName.MatchString(sig) || sig == "." || sig == ".." {
		sig = hash.String([]byte(sig))
	}
	return filepath.Join(st.dir, "crashes", sig)
}

// Load returns the persisted corpus. Entries that cannot be read or whose contents
// do not match their name are skipped and returned as errors.
func (st *Dir) Load() ([]Entry, []error) {
	entries, errs := st.readDir("corpus")
	var res []Entry
	for _, ent := range entries {
		if sig := hash.String(ent.Data); sig != ent.Name {
			errs = append(errs, fmt.Errorf("%w: corpus entry %v is corrupted (hash %v)", ErrCorpusIO, ent.Name, sig))
			continue
		}
		res = append(res, ent)
	}
	return res, errs
}

// Prune removes corpus entries for which keep returns false.
// It returns the number of removed entries.
func (st *Dir) Prune(keep func(sig string) bool) (int, []error) {
	names, err := osutil.ListDir(filepath.Join(st.dir, "corpus"))
	if err != nil {
		return 0, []error{fmt.Errorf("%w: %w", ErrCorpusIO, err)}
	}
	removed := 0
	var errs []error
	for _, name := range names {
		if name[0] == '.' || keep(name) {
			continue
		}
		if err := st.Remove(name); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

// Pending returns inputs that were staged but never unstaged,
// i.e. inputs that were under execution when the previous run terminated.
func (st *Dir) Pending() ([]Entry, []error) {
	return st.readDir("pending")
}

// Crashes returns names of the saved crash directories.
func (st *Dir) Crashes() ([]string, error) {
	names, err := osutil.ListDir(filepath.Join(st.dir, "crashes"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorpusIO, err)
	}
	sort.Strings(names)
	return names, nil
}

func (st *Dir) readDir(sub string) ([]Entry, []error) {
	dir := filepath.Join(st.dir, sub)
	names, err := osutil.ListDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("%w: %w", ErrCorpusIO, err)}
	}
	sort.Strings(names)
	var res []Entry
	var errs []error
	for _, name := range names {
		if name[0] == '.' {
			// Leftover temp file of an interrupted atomic write.
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrCorpusIO, err))
			continue
		}
		res = append(res, Entry{Name: name, Data: data})
	}
	return res, errs
}

func (st *Dir) write(file string, data []byte) error {
	if err := osutil.WriteFileAtomically(file, data); err != nil {
		return fmt.Errorf("%w: %w", ErrCorpusIO, err)
	}
	return nil
}

func (st *Dir) remove(file string) error {
	if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrCorpusIO, err)
	}
	return nil
}
