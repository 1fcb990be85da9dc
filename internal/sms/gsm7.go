package sms

import (
	"strings"
)

const gsm7Escape = 0x1B

// gsm7Default is the GSM 03.38 default alphabet indexed by septet value.
var gsm7Default = [128]rune{
	'@', '£', '$', '¥', 'è', 'é', 'ù', 'ì', 'ò', 'Ç', '\n', 'Ø', 'ø', '\r', 'Å', 'å',
	'Δ', '_', 'Φ', 'Γ', 'Λ', 'Ω', 'Π', 'Ψ', 'Σ', 'Θ', 'Ξ', '\x1b', 'Æ', 'æ', 'ß', 'É',
	' ', '!', '"', '#', '¤', '%', '&', '\'', '(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', ':', ';', '<', '=', '>', '?',
	'¡', 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z', 'Ä', 'Ö', 'Ñ', 'Ü', '§',
	'¿', 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z', 'ä', 'ö', 'ñ', 'ü', 'à',
}

// gsm7Extension holds the characters reachable through the escape septet.
var gsm7Extension = map[byte]rune{
	0x0A: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2F: '\\',
	0x3C: '[',
	0x3D: '~',
	0x3E: ']',
	0x40: '|',
	0x65: '€',
}

var (
	gsm7DefaultIndex   = make(map[rune]byte, len(gsm7Default))
	gsm7ExtensionIndex = make(map[rune]byte, len(gsm7Extension))
)

func init() {
	for i, r := range gsm7Default {
		if i == gsm7Escape {
			continue
		}
		gsm7DefaultIndex[r] = byte(i)
	}
	for code, r := range gsm7Extension {
		gsm7ExtensionIndex[r] = code
	}
}

// unpackSeptets reads count 7-bit values packed LSB-first into data.
func unpackSeptets(data []byte, count int) ([]byte, error) {
	if count < 0 {
		return nil, ErrTruncated
	}
	if (count*7+7)/8 > len(data) {
		return nil, ErrTruncated
	}
	out := make([]byte, count)
	for i := 0; i < count; i++ {
		bit := i * 7
		idx := bit / 8
		shift := uint(bit % 8)
		v := data[idx] >> shift
		if shift > 1 {
			v |= data[idx+1] << (8 - shift)
		}
		out[i] = v & 0x7F
	}
	return out, nil
}

// packSeptets is the inverse of unpackSeptets.
func packSeptets(septets []byte) []byte {
	out := make([]byte, (len(septets)*7+7)/8)
	for i, s := range septets {
		bit := i * 7
		idx := bit / 8
		shift := uint(bit % 8)
		out[idx] |= (s & 0x7F) << shift
		if shift > 1 {
			out[idx+1] |= (s & 0x7F) >> (8 - shift)
		}
	}
	return out
}

// decodeGSM7 maps unpacked septets to text, resolving escape sequences.
func decodeGSM7(septets []byte) string {
	var b strings.Builder
	b.Grow(len(septets))
	for i := 0; i < len(septets); i++ {
		s := septets[i]
		if s != gsm7Escape {
			b.WriteRune(gsm7Default[s])
			continue
		}
		if i+1 >= len(septets) {
			break
		}
		i++
		if r, ok := gsm7Extension[septets[i]]; ok {
			b.WriteRune(r)
			continue
		}
		// Unknown extension codes fall back to the default table.
		b.WriteRune(gsm7Default[septets[i]])
	}
	return b.String()
}

// encodeGSM7 maps text to septets. ok is false when a rune has no GSM 7-bit form.
func encodeGSM7(text string) (septets []byte, ok bool) {
	septets = make([]byte, 0, len(text))
	for _, r := range text {
		if s, found := gsm7DefaultIndex[r]; found {
			septets = append(septets, s)
			continue
		}
		if s, found := gsm7ExtensionIndex[r]; found {
			septets = append(septets, gsm7Escape, s)
			continue
		}
		return nil, false
	}
	return septets, true
}
