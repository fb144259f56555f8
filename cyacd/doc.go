// Package cyacd parses the Cypress .cyacd firmware container.
//
// # File format
//
// The first non-empty line is a 12-character hex header decoding to 6
// bytes: silicon ID (big-endian, 4 bytes), silicon revision (1 byte), and
// checksum kind (1 byte: 0 = two's-complement sum, 1 = CRC-16).
//
// Every following line is a row record: a leading ':' followed by a
// hex-encoded block of array ID (1 byte), row number (2 bytes,
// big-endian), data length (2 bytes, big-endian), data, and a trailing
// one-byte checksum covering everything that came before it.
//
//	fw, err := cyacd.Parse("firmware.cyacd")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("silicon 0x%08X rev %d\n", fw.SiliconID, fw.SiliconRev)
//
// Rows are grouped by array, then by row number; a later row with the
// same (array ID, row number) pair overwrites an earlier one, matching
// how the reference bootloader tool reads these files — it never
// deduplicates, and production images never repeat a row.
package cyacd
