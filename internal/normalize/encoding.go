// Copyright 2025 The aer-crawler Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package normalize

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Tableau crosstab exports arrive in UTF-16 LE more often than not, with
// the occasional UTF-8 (BOM or not) and legacy Windows-1252 file mixed in.

var (
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
)

func sniffEncoding(raw []byte) encoding.Encoding {
	switch {
	case bytes.HasPrefix(raw, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)

	case bytes.HasPrefix(raw, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

	case bytes.HasPrefix(raw, bomUTF8):
		return unicode.UTF8BOM
	}

	head := raw
	if len(head) > 100 {
		head = head[:100]
	}

	// BOM-less UTF-16 LE still betrays itself with NUL bytes
	if bytes.IndexByte(head, 0x00) >= 0 {
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	}

	if utf8.Valid(raw) {
		return unicode.UTF8
	}

	return charmap.Windows1252
}

// DecodeText converts raw file bytes to a UTF-8 string, sniffing the
// source encoding from BOMs and byte patterns.
func DecodeText(raw []byte) (string, error) {
	decoded, err := sniffEncoding(raw).NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}

	return string(decoded), nil
}
