package console

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

// Windows code pages the encode server is known to write console output in.
const (
	CodePageShiftJIS  = 932
	CodePageEUCJP     = 51932
	CodePageISO2022JP = 50220
	CodePageUTF8      = 65001
)

// EncodingForCodePage maps a Windows code page to a decoder. Unknown pages and
// 0 resolve to nil, meaning bytes are treated as UTF-8. Only ASCII-compatible
// encodings are supported because lines are split on raw CR/LF bytes.
func EncodingForCodePage(codePage int) encoding.Encoding {
	switch codePage {
	case CodePageShiftJIS:
		return japanese.ShiftJIS
	case CodePageEUCJP:
		return japanese.EUCJP
	case CodePageISO2022JP:
		return japanese.ISO2022JP
	default:
		return nil
	}
}

func decodeLine(enc encoding.Encoding, raw []byte) string {
	if enc == nil {
		if utf8.Valid(raw) {
			return string(raw)
		}
		return string([]rune(string(raw)))
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
