package audio

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type fileFormat int

const (
	formatWAV fileFormat = iota
	formatMP3
)

// SupportedExtensions lists the file extensions PlayFile accepts.
var SupportedExtensions = []string{".mp3", ".wav"}

// IsSupportedFile reports whether name has a playable extension.
func IsSupportedFile(name string) bool {
	_, err := formatOf(name)
	return err == nil
}

func formatOf(name string) (fileFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return formatWAV, nil
	case ".mp3":
		return formatMP3, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

func newDecoder(kind fileFormat, r io.ReadSeeker) (Decoder, error) {
	switch kind {
	case formatWAV:
		return newWAVDecoder(r)
	case formatMP3:
		return newMP3Decoder(r)
	}
	return nil, ErrUnsupportedFormat
}
