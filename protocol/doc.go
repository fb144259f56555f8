// Package protocol implements the Cypress/Infineon bootloader wire protocol:
// frame encoding/decoding, the fixed command catalogue, and the status-code
// error taxonomy.
//
// # Frame shape
//
// Every packet, in either direction, has the shape
//
//	0x01 | opcode/status(1) | length(2 LE) | payload(length) | checksum(2 LE) | 0x17
//
// The checksum covers every byte from the leading 0x01 through the last
// payload byte, computed with whichever of SumTwosComplement or CRC16 the
// image declared.
//
// # Commands
//
// Use the Build* functions to assemble a command frame, and DecodeFrame
// followed by the matching Parse* function to interpret a response:
//
//	frame, err := protocol.BuildEnterBootloaderCmd(key, checksum)
//	status, data, err := protocol.DecodeFrame(response, checksum)
//	if status != protocol.StatusSuccess {
//	    return protocol.NewProtocolError("EnterBootloader", status)
//	}
//	info, err := protocol.ParseEnterBootloaderResponse(data)
//
// A malformed frame or checksum mismatch produces a *LinkError instead of a
// status byte; callers (the session's retry loop) treat the two
// differently.
package protocol
