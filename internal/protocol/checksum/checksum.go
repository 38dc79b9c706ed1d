// Package checksum implements the two CRC variants the G2 firmware expects:
// CRC-16/CCITT over packet payloads and a non-reflected CRC-32C over
// notification file transfers.
package checksum

const (
	crc16Init uint16 = 0xFFFF
	crc16Poly uint16 = 0x1021

	crc32cPoly uint32 = 0x1EDC6F41
)

// crc32cTable is derived from crc32cPoly at startup. The firmware uses the
// MSB-first (non-reflected) Castagnoli variant, which does NOT match the
// reflected CRC-32C found in hash/crc32.
var crc32cTable [256]uint32

func init() {
	for i := range crc32cTable {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ crc32cPoly
			} else {
				crc <<= 1
			}
		}
		crc32cTable[i] = crc
	}
}

// CRC16CCITT computes the bitwise CRC-16/CCITT (init 0xFFFF, poly 0x1021,
// no reflection) used for packet framing.
func CRC16CCITT(data []byte) uint16 {
	crc := crc16Init
	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC32C computes the non-reflected Castagnoli CRC-32 (init 0) over data.
func CRC32C(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		idx := b ^ byte(crc>>24)
		crc = (crc << 8) ^ crc32cTable[idx]
	}
	return crc
}
