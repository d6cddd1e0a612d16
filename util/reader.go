// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"encoding/binary"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
)

// Reader - sequential unpacker over one packed record
//
// the first malformed field latches the error; every later call
// returns a zero value so unpack code can run straight through and
// check Err once at the end
type Reader struct {
	buffer []byte
	offset int
	err    error
}

// NewReader - wrap a packed buffer
func NewReader(buffer []byte) *Reader {
	return &Reader{buffer: buffer}
}

// Err - the first decoding error, nil while the buffer is well formed
func (r *Reader) Err() error {
	return r.err
}

// Remaining - number of unconsumed bytes
func (r *Reader) Remaining() int {
	return len(r.buffer) - r.offset
}

// Uvarint - read an unsigned varint
func (r *Reader) Uvarint() uint64 {
	if nil != r.err {
		return 0
	}
	value, n := binary.Uvarint(r.buffer[r.offset:])
	if n <= 0 {
		r.err = fault.ErrInvalidStructure
		return 0
	}
	r.offset += n
	return value
}

// Varint - read a zig-zag signed varint
func (r *Reader) Varint() int64 {
	if nil != r.err {
		return 0
	}
	value, n := binary.Varint(r.buffer[r.offset:])
	if n <= 0 {
		r.err = fault.ErrInvalidStructure
		return 0
	}
	r.offset += n
	return value
}

// Byte - read one raw byte
func (r *Reader) Byte() byte {
	if nil != r.err {
		return 0
	}
	if len(r.buffer)-r.offset < 1 {
		r.err = fault.ErrInvalidStructure
		return 0
	}
	b := r.buffer[r.offset]
	r.offset += 1
	return b
}

// Bytes - read a length-prefixed byte string, nil when empty
func (r *Reader) Bytes() []byte {
	length := r.Uvarint()
	if nil != r.err {
		return nil
	}
	if uint64(len(r.buffer)-r.offset) < length {
		r.err = fault.ErrInvalidStructure
		return nil
	}
	if 0 == length {
		return nil
	}
	data := make([]byte, length)
	copy(data, r.buffer[r.offset:r.offset+int(length)])
	r.offset += int(length)
	return data
}

// Digest - read a raw fixed-length digest
func (r *Reader) Digest() digest.Digest {
	var d digest.Digest
	if nil != r.err {
		return d
	}
	if len(r.buffer)-r.offset < digest.Length {
		r.err = fault.ErrInvalidStructure
		return d
	}
	copy(d[:], r.buffer[r.offset:r.offset+digest.Length])
	r.offset += digest.Length
	return d
}
