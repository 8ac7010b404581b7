// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/evofuzz/evofuzz/pkg/hash"
	"github.com/ulikunitz/xz"
)

// maxArchiveEntry bounds entry size on unpacking so that a corrupted length does not exhaust memory.
const maxArchiveEntry = 64 << 20

// Pack writes the persisted corpus to w as an xz-compressed archive.
// Each entry is stored as a uvarint length followed by the data.
func (st *Dir) Pack(w io.Writer) (int, []error) {
	entries, errs := st.Load()
	xw, err := xz.NewWriter(w)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%w: %w", ErrCorpusIO, err))
	}
	var buf [binary.MaxVarintLen64]byte
	for _, ent := range entries {
		n := binary.PutUvarint(buf[:], uint64(len(ent.Data)))
		if _, err := xw.Write(buf[:n]); err != nil {
			return 0, append(errs, fmt.Errorf("%w: %w", ErrCorpusIO, err))
		}
		if _, err := xw.Write(ent.Data); err != nil {
			return 0, append(errs, fmt.Errorf("%w: %w", ErrCorpusIO, err))
		}
	}
	if err := xw.Close(); err != nil {
		return 0, append(errs, fmt.Errorf("%w: %w", ErrCorpusIO, err))
	}
	return len(entries), errs
}

// Unpack adds entries of an archive created by Pack to the persisted corpus.
func (st *Dir) Unpack(r io.Reader) (int, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorpusIO, err)
	}
	br := bufio.NewReader(xr)
	added := 0
	for {
		size, err := binary.ReadUvarint(br)
		if errors.Is(err, io.EOF) {
			return added, nil
		}
		if err != nil {
			return added, fmt.Errorf("%w: corrupted archive: %w", ErrCorpusIO, err)
		}
		if size > maxArchiveEntry {
			return added, fmt.Errorf("%w: corrupted archive: entry of %v bytes", ErrCorpusIO, size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return added, fmt.Errorf("%w: corrupted archive: %w", ErrCorpusIO, err)
		}
		if err := st.Save(hash.String(data), data); err != nil {
			return added, err
		}
		added++
	}
}
