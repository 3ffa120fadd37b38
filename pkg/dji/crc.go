// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import "hash/crc32"

var crc16Table = makeCRC16Table()

func makeCRC16Table() [256]uint16 {
	var table [256]uint16
	for i := range table {
		crc := uint16(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crc16Polynomial
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC16Init returns the seed of the header checksum.
// The seed is not the conventional 0x0000/0xFFFF, so generic CRC-16 tables
// will not reproduce frame checksums.
func CRC16Init() uint16 {
	return crc16Initial
}

// CRC16Update feeds data into a running header checksum.
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc16Table[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// CRC16Finalize returns the final checksum value (no output xor).
func CRC16Finalize(crc uint16) uint16 {
	return crc
}

// CRC16 computes the header checksum of data in one call
func CRC16(data []byte) uint16 {
	return CRC16Finalize(CRC16Update(CRC16Init(), data))
}

// CRC32 computes the frame checksum (IEEE CRC-32)
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
