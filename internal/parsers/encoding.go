package parsers

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"customer-statement-validator/pkg/errors"
)

// Encoding names a character set accepted for input files
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "iso-8859-1"
)

// ParseEncoding normalises a user supplied encoding name
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return EncodingLatin1, nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s", name)
	}
}

// DecodeInput converts raw input bytes to UTF-8 and strips a UTF-8 byte order mark.
// UTF-8 input that is not valid UTF-8 is rejected.
func DecodeInput(data []byte, encoding Encoding) ([]byte, error) {
	switch encoding {
	case EncodingUTF8, "":
		if !utf8.Valid(data) {
			return nil, errors.EncodingError(string(EncodingUTF8), fmt.Errorf("input is not valid UTF-8"))
		}
		return bytes.TrimPrefix(data, []byte(utf8BOM)), nil
	case EncodingLatin1:
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.EncodingError(string(encoding), err)
		}
		return decoded, nil
	default:
		return nil, errors.EncodingError(string(encoding), fmt.Errorf("unsupported encoding"))
	}
}
