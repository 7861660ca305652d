package ragprep

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// csvEncodings are tried in order by the tabular engine.
var csvEncodings = []string{"utf-8", "latin-1", "cp1252", "iso-8859-1"}

var errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")

// lookupEncoding maps charset labels to x/text encodings.
func lookupEncoding(charset string) encoding.Encoding {
	key := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(charset))
	switch key {
	case "utf8", "ascii", "usascii":
		return unicode.UTF8
	case "utf16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "latin1", "iso88591":
		return charmap.ISO8859_1
	case "iso88592":
		return charmap.ISO8859_2
	case "iso885915":
		return charmap.ISO8859_15
	case "cp1250", "windows1250":
		return charmap.Windows1250
	case "cp1251", "windows1251":
		return charmap.Windows1251
	case "cp1252", "windows1252":
		return charmap.Windows1252
	case "koi8r":
		return charmap.KOI8R
	case "shiftjis", "sjis", "cp932":
		return japanese.ShiftJIS
	case "eucjp":
		return japanese.EUCJP
	case "euckr", "cp949":
		return korean.EUCKR
	case "gb2312", "gbk", "gb18030":
		return simplifiedchinese.GBK
	case "big5":
		return traditionalchinese.Big5
	}
	return nil
}

// decodeAs decodes data with the named encoding. Unlike the charmap
// decoders, "utf-8" fails on invalid input so the caller can move on to the
// next candidate.
func decodeAs(data []byte, name string) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	enc := lookupEncoding(name)
	if enc == nil {
		return "", fmt.Errorf("unknown encoding %q", name)
	}
	if enc == unicode.UTF8 {
		if !utf8.Valid(data) {
			return "", errInvalidUTF8
		}
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeText returns data as UTF-8. Valid UTF-8 passes through; otherwise
// chardet picks the charset, and as a last resort invalid sequences are dropped.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	if best, err := chardet.NewTextDetector().DetectBest(data); err == nil {
		if enc := lookupEncoding(best.Charset); enc != nil && enc != unicode.UTF8 {
			if out, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(out)
			}
		}
	}
	return strings.ToValidUTF8(string(data), "")
}
