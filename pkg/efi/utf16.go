package efi

import "unicode/utf16"

// EncodeUTF16LE converts a UTF-8 string to a UTF-16LE byte sequence with a
// trailing null pair, the wire format EFI variable payloads use (§4.7).
func EncodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2+2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return append(out, 0, 0)
}

// DecodeUTF16LE converts a UTF-16LE byte sequence, with or without a
// trailing null pair, back to a UTF-8 string.
func DecodeUTF16LE(data []byte) string {
	if len(data) <= 2 {
		return ""
	}
	if data[len(data)-2] == 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-2]
	}

	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])|uint16(data[i+1])<<8)
	}
	return string(utf16.Decode(units))
}

// DecodeUTF16LEList splits a UTF-16LE byte sequence holding multiple
// null-separated strings (the LoaderEntries payload shape) into their
// decoded UTF-8 values, dropping the final list terminator.
func DecodeUTF16LEList(data []byte) []string {
	var out []string
	if len(data) <= 2 {
		return out
	}

	start := 0
	for i := 1; i < len(data); i += 2 {
		if data[i-1] != 0 || data[i] != 0 {
			continue
		}
		segment := data[start:i-1]
		if len(segment) == 0 {
			if i == len(data)-1 {
				break
			}
			start = i + 1
			continue
		}
		out = append(out, DecodeUTF16LE(append(append([]byte{}, segment...), 0, 0)))
		start = i + 1
	}
	return out
}
