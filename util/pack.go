// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package util - binary pack and unpack helpers shared by the record
// packages
//
// all records use the same canonical form: unsigned and signed
// varints, length-prefixed byte strings and raw digests
package util

import (
	"encoding/binary"
)

// AppendUvarint - append an unsigned varint
func AppendUvarint(buffer []byte, value uint64) []byte {
	scratch := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(scratch, value)
	return append(buffer, scratch[:n]...)
}

// AppendVarint - append a zig-zag signed varint
func AppendVarint(buffer []byte, value int64) []byte {
	scratch := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(scratch, value)
	return append(buffer, scratch[:n]...)
}

// AppendBytes - append a length-prefixed byte string
func AppendBytes(buffer []byte, data []byte) []byte {
	buffer = AppendUvarint(buffer, uint64(len(data)))
	return append(buffer, data...)
}
