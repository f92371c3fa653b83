// Package protocol holds the wire formats of the clock's BLE service:
// framed multi-chunk reads and the file transfer control commands.
package protocol

import (
	"fmt"
	"strings"
)

// Frames splits value into chunks that fit mtu once framed. Each frame is
// [index, total, payload...]. At most 255 frames are produced.
func Frames(value []byte, mtu int) ([][]byte, error) {
	if mtu <= FrameHeader {
		return nil, fmt.Errorf("protocol: mtu %d too small", mtu)
	}
	chunks := Chunk(value, mtu-FrameHeader)
	if len(chunks) == 0 {
		return [][]byte{{0, 1}}, nil
	}
	if len(chunks) > 255 {
		return nil, fmt.Errorf("protocol: value of %d bytes needs %d frames", len(value), len(chunks))
	}
	frames := make([][]byte, len(chunks))
	for i, c := range chunks {
		f := make([]byte, 0, FrameHeader+len(c))
		f = append(f, byte(i), byte(len(chunks)))
		frames[i] = append(f, c...)
	}
	return frames, nil
}

// FileOp is a file transfer control operation.
type FileOp int

const (
	FileStart FileOp = iota + 1
	FileEnd
	FileDelete
	FileAbort
)

func (o FileOp) String() string {
	switch o {
	case FileStart:
		return "start"
	case FileEnd:
		return "end"
	case FileDelete:
		return "delete"
	case FileAbort:
		return "abort"
	}
	return "unknown"
}

// ParseFileControl parses a file control write: "start:<name>", "end",
// "abort" or "delete:<name>".
func ParseFileControl(s string) (FileOp, string, error) {
	s = strings.TrimSpace(s)
	cmd, arg, hasArg := strings.Cut(s, ":")
	switch cmd {
	case "start", "delete":
		if !hasArg || arg == "" {
			return 0, "", fmt.Errorf("protocol: %s needs a file name", cmd)
		}
		if cmd == "start" {
			return FileStart, arg, nil
		}
		return FileDelete, arg, nil
	case "end":
		return FileEnd, "", nil
	case "abort":
		return FileAbort, "", nil
	}
	return 0, "", fmt.Errorf("protocol: unknown file command %q", s)
}
