// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package digest - SHA3-256 identifiers
//
// all opaque identifiers used by the notary (asset ids, account
// references, token ids) are SHA3-256 digests of a canonical record
package digest

import (
	"bytes"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/notaryd/fault"
)

// Length - number of bytes in the digest
const Length = 32

// Digest - type for a digest
// stored and displayed as big endian hex
// to convert to bytes just use d[:]
type Digest [Length]byte

// NewDigest - create a digest from a byte slice
func NewDigest(record []byte) Digest {
	return sha3.Sum256(record)
}

// String - convert a binary digest to hex string for use by the fmt package (for %s)
func (digest Digest) String() string {
	return hex.EncodeToString(digest[:])
}

// GoString - convert a binary digest to hex string for use by the fmt package (for %#v)
func (digest Digest) GoString() string {
	return "<SHA3-256:" + hex.EncodeToString(digest[:]) + ">"
}

// MarshalText - convert digest to hex text
func (digest Digest) MarshalText() ([]byte, error) {
	size := hex.EncodedLen(len(digest))
	buffer := make([]byte, size)
	hex.Encode(buffer, digest[:])
	return buffer, nil
}

// UnmarshalText - convert hex text into a digest
func (digest *Digest) UnmarshalText(s []byte) error {
	if Length != hex.DecodedLen(len(s)) {
		return fault.ErrInvalidStructure
	}
	buffer := make([]byte, hex.DecodedLen(len(s)))
	byteCount, err := hex.Decode(buffer, s)
	if nil != err {
		return err
	}
	copy(digest[:], buffer[:byteCount])
	return nil
}

// FromBytes - convert and validate a binary byte slice to a digest
func FromBytes(digest *Digest, buffer []byte) error {
	if Length != len(buffer) {
		return fault.ErrInvalidStructure
	}
	copy(digest[:], buffer)
	return nil
}

// Compare - canonical byte ordering
// used to fix the acquisition order of multi-account operations
func Compare(a Digest, b Digest) int {
	return bytes.Compare(a[:], b[:])
}

// IsEmpty - all zero digest check
func (digest Digest) IsEmpty() bool {
	return digest == Digest{}
}
