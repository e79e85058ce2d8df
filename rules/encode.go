package rules

import (
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

// style controls separators and escaping of the hand-rolled encoder. Results must keep
// rule order, which encoding/json cannot do for maps.
type style struct {
	itemSep   string
	keySep    string
	asciiOnly bool
}

var (
	// processStyle matches the line format consumers of the command-line contract parse:
	// ", " and ": " separators, everything outside printable ASCII escaped as \uXXXX.
	processStyle = style{itemSep: ", ", keySep: ": ", asciiOnly: true}
	compactStyle = style{itemSep: ",", keySep: ":"}
)

// MarshalJSON encodes the classified keys as an object in rule order. Omitted keys are
// left out.
func (r *PanelResult) MarshalJSON() ([]byte, error) {
	return r.appendJSON(nil, compactStyle), nil
}

// MarshalJSON encodes the classification with a null recommendation when none applies
func (c Classification) MarshalJSON() ([]byte, error) {
	return c.appendJSON(nil, compactStyle), nil
}

// WriteResult writes r as a single output line in the process format
func WriteResult(w io.Writer, r *PanelResult) error {
	b := r.appendJSON(nil, processStyle)
	b = append(b, '\n')
	_, err := w.Write(b)
	return err
}

// WriteUnknownTest writes the unknown-test sentinel as a single output line in the
// process format
func WriteUnknownTest(w io.Writer) error {
	s := processStyle
	b := []byte{'{'}
	b = appendString(b, "error", s)
	b = append(b, s.keySep...)
	b = appendString(b, ErrUnknownTest.Error(), s)
	b = append(b, '}', '\n')
	_, err := w.Write(b)
	return err
}

func (r *PanelResult) appendJSON(b []byte, s style) []byte {
	b = append(b, '{')
	first := true
	for _, o := range r.Outcomes {
		if o.Omitted {
			continue
		}
		if !first {
			b = append(b, s.itemSep...)
		}
		first = false
		b = appendString(b, o.Key, s)
		b = append(b, s.keySep...)
		b = o.Result.appendJSON(b, s)
	}
	return append(b, '}')
}

func (c Classification) appendJSON(b []byte, s style) []byte {
	b = append(b, '{')
	b = appendString(b, "classification", s)
	b = append(b, s.keySep...)
	b = appendString(b, c.Label, s)
	b = append(b, s.itemSep...)
	b = appendString(b, "recommendation", s)
	b = append(b, s.keySep...)
	if c.Recommendation == nil {
		b = append(b, "null"...)
	} else {
		b = appendString(b, *c.Recommendation, s)
	}
	return append(b, '}')
}

const hex = "0123456789abcdef"

func appendString(b []byte, str string, s style) []byte {
	b = append(b, '"')
	for i := 0; i < len(str); {
		c := str[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"':
				b = append(b, '\\', '"')
			case c == '\\':
				b = append(b, '\\', '\\')
			case c == '\n':
				b = append(b, '\\', 'n')
			case c == '\r':
				b = append(b, '\\', 'r')
			case c == '\t':
				b = append(b, '\\', 't')
			case c == '\b':
				b = append(b, '\\', 'b')
			case c == '\f':
				b = append(b, '\\', 'f')
			case c < 0x20 || (s.asciiOnly && c == 0x7f):
				b = appendUnicodeEscape(b, rune(c))
			default:
				b = append(b, c)
			}
			i++
			continue
		}

		r, size := utf8.DecodeRuneInString(str[i:])
		switch {
		case !s.asciiOnly && r != utf8.RuneError:
			b = append(b, str[i:i+size]...)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			b = appendUnicodeEscape(b, r1)
			b = appendUnicodeEscape(b, r2)
		default:
			b = appendUnicodeEscape(b, r)
		}
		i += size
	}
	return append(b, '"')
}

func appendUnicodeEscape(b []byte, r rune) []byte {
	b = append(b, '\\', 'u')
	return append(b, hex[r>>12&0xf], hex[r>>8&0xf], hex[r>>4&0xf], hex[r&0xf])
}
