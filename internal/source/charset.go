package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeReader wraps r so consumers always see UTF-8. An explicit hint
// wins; otherwise the byte order mark, then the XML declaration's
// encoding pseudo-attribute, decide. Plain UTF-8 passes through.
func DecodeReader(r io.Reader, hint string) (io.Reader, error) {
	if hint != "" {
		dec, err := charset.NewReaderLabel(hint, r)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %v", hint, err)
		}
		return dec, nil
	}

	br := bufio.NewReader(r)
	head, _ := br.Peek(1024)

	if bytes.HasPrefix(head, utf8BOM) {
		br.Discard(len(utf8BOM))
		return br, nil
	}
	if len(head) >= 2 {
		switch {
		case head[0] == 0xFE && head[1] == 0xFF:
			return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Reader(br), nil
		case head[0] == 0xFF && head[1] == 0xFE:
			return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Reader(br), nil
		case head[0] == '<' && head[1] == 0x00:
			return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Reader(br), nil
		case head[0] == 0x00 && head[1] == '<':
			return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Reader(br), nil
		}
	}
	if label := xmlDeclEncoding(head); label != "" {
		dec, err := charset.NewReaderLabel(label, br)
		if err != nil {
			return nil, fmt.Errorf("unsupported document encoding %q: %v", label, err)
		}
		return dec, nil
	}
	return br, nil
}

// xmlDeclEncoding pulls the encoding pseudo-attribute out of an XML
// declaration sitting at the start of head, if any.
func xmlDeclEncoding(head []byte) string {
	if !bytes.HasPrefix(head, []byte("<?xml")) {
		return ""
	}
	decl := head
	if end := bytes.Index(head, []byte("?>")); end >= 0 {
		decl = head[:end]
	}
	s := string(decl)
	i := strings.Index(s, "encoding")
	if i < 0 {
		return ""
	}
	s = strings.TrimLeft(s[i+len("encoding"):], " \t\r\n")
	if !strings.HasPrefix(s, "=") {
		return ""
	}
	s = strings.TrimLeft(s[1:], " \t\r\n")
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') {
		return ""
	}
	quote := s[0]
	s = s[1:]
	end := strings.IndexByte(s, quote)
	if end < 0 {
		return ""
	}
	return s[:end]
}
