// Package sms decodes and encodes 3GPP TS 23.040 SMS-DELIVER PDUs.
package sms

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrTruncated reports a PDU shorter than its own length fields claim.
	ErrTruncated = errors.New("sms: truncated pdu")
	// ErrUnsupportedType reports a PDU that is not an SMS-DELIVER.
	ErrUnsupportedType = errors.New("sms: unsupported message type")
	// ErrUnsupportedEncoding reports a data coding scheme this package cannot decode.
	ErrUnsupportedEncoding = errors.New("sms: unsupported data coding scheme")
)

// Alphabet is the character set of the user data.
type Alphabet int

const (
	AlphabetGSM7 Alphabet = iota
	Alphabet8Bit
	AlphabetUCS2
)

func (a Alphabet) String() string {
	switch a {
	case AlphabetGSM7:
		return "gsm7"
	case Alphabet8Bit:
		return "8bit"
	case AlphabetUCS2:
		return "ucs2"
	default:
		return fmt.Sprintf("alphabet(%d)", int(a))
	}
}

const (
	mtiMask    = 0x03
	mtiDeliver = 0x00
	udhiFlag   = 0x40

	tonMask          = 0x70
	tonInternational = 0x10
	tonAlphanumeric  = 0x50

	sctsLength = 7
)

// Message is the decoded content of one SMS-DELIVER PDU.
type Message struct {
	SMSC     string
	Sender   string
	Body     string
	Alphabet Alphabet
	SentAt   time.Time
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) octet() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) rest() []byte {
	return r.buf[r.pos:]
}

// Decode parses one SMS-DELIVER PDU including its leading SMSC address.
func Decode(pdu []byte) (Message, error) {
	if len(pdu) == 0 {
		return Message{}, ErrTruncated
	}
	r := &reader{buf: pdu}
	var msg Message

	smscLen, err := r.octet()
	if err != nil {
		return Message{}, err
	}
	if smscLen > 0 {
		smsc, err := r.next(int(smscLen))
		if err != nil {
			return Message{}, fmt.Errorf("read smsc: %w", err)
		}
		msg.SMSC = decodeSMSC(smsc)
	}

	first, err := r.octet()
	if err != nil {
		return Message{}, err
	}
	if first&mtiMask != mtiDeliver {
		return Message{}, fmt.Errorf("%w: mti %d", ErrUnsupportedType, first&mtiMask)
	}

	msg.Sender, err = readAddress(r)
	if err != nil {
		return Message{}, fmt.Errorf("read originating address: %w", err)
	}

	if _, err := r.octet(); err != nil { // TP-PID
		return Message{}, err
	}
	dcs, err := r.octet()
	if err != nil {
		return Message{}, err
	}
	msg.Alphabet, err = alphabetFor(dcs)
	if err != nil {
		return Message{}, err
	}

	scts, err := r.next(sctsLength)
	if err != nil {
		return Message{}, fmt.Errorf("read timestamp: %w", err)
	}
	msg.SentAt = decodeTimestamp(scts)

	udl, err := r.octet()
	if err != nil {
		return Message{}, err
	}
	msg.Body, err = decodeUserData(r.rest(), int(udl), msg.Alphabet, first&udhiFlag != 0)
	if err != nil {
		return Message{}, fmt.Errorf("read user data: %w", err)
	}
	return msg, nil
}

// alphabetFor resolves the TP-DCS octet per 3GPP TS 23.038 section 4.
func alphabetFor(dcs byte) (Alphabet, error) {
	switch {
	case dcs&0xC0 == 0x00, dcs&0xC0 == 0x40:
		if dcs&0x20 != 0 {
			return 0, fmt.Errorf("%w: compressed 0x%02X", ErrUnsupportedEncoding, dcs)
		}
		switch (dcs >> 2) & 0x03 {
		case 0x00:
			return AlphabetGSM7, nil
		case 0x01:
			return Alphabet8Bit, nil
		case 0x02:
			return AlphabetUCS2, nil
		default:
			return 0, fmt.Errorf("%w: reserved 0x%02X", ErrUnsupportedEncoding, dcs)
		}
	case dcs&0xF0 == 0xC0, dcs&0xF0 == 0xD0:
		return AlphabetGSM7, nil
	case dcs&0xF0 == 0xE0:
		return AlphabetUCS2, nil
	case dcs&0xF0 == 0xF0:
		if dcs&0x04 != 0 {
			return Alphabet8Bit, nil
		}
		return AlphabetGSM7, nil
	default:
		return 0, fmt.Errorf("%w: reserved 0x%02X", ErrUnsupportedEncoding, dcs)
	}
}

func readAddress(r *reader) (string, error) {
	digits, err := r.octet()
	if err != nil {
		return "", err
	}
	toa, err := r.octet()
	if err != nil {
		return "", err
	}
	raw, err := r.next((int(digits) + 1) / 2)
	if err != nil {
		return "", err
	}

	if toa&tonMask == tonAlphanumeric {
		septets, err := unpackSeptets(raw, int(digits)*4/7)
		if err != nil {
			return "", err
		}
		return decodeGSM7(septets), nil
	}

	number := decodeSemiOctets(raw, int(digits))
	if toa&tonMask == tonInternational && number != "" {
		number = "+" + number
	}
	return number, nil
}

func decodeSMSC(raw []byte) string {
	if len(raw) < 2 {
		return ""
	}
	number := decodeSemiOctets(raw[1:], (len(raw)-1)*2)
	if raw[0]&tonMask == tonInternational && number != "" {
		number = "+" + number
	}
	return number
}

const semiOctetDigits = "0123456789*#abc"

// decodeSemiOctets reads swapped-nibble BCD digits, stopping at the 0xF filler.
func decodeSemiOctets(raw []byte, count int) string {
	var b strings.Builder
	b.Grow(count)
	for i := 0; i < count && i/2 < len(raw); i++ {
		v := raw[i/2]
		if i%2 == 1 {
			v >>= 4
		}
		v &= 0x0F
		if int(v) >= len(semiOctetDigits) {
			break
		}
		b.WriteByte(semiOctetDigits[v])
	}
	return b.String()
}

func decodeTimestamp(scts []byte) time.Time {
	var fields [6]int
	for i := 0; i < 6; i++ {
		v, ok := swappedBCD(scts[i])
		if !ok {
			return time.Time{}
		}
		fields[i] = v
	}
	tz := scts[6]
	quarters, ok := swappedBCD(tz &^ 0x08)
	if !ok {
		return time.Time{}
	}
	offset := quarters * 15 * 60
	if tz&0x08 != 0 {
		offset = -offset
	}
	loc := time.FixedZone("", offset)
	year := 2000 + fields[0]
	if fields[0] >= 90 {
		year = 1900 + fields[0]
	}
	return time.Date(year, time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, loc)
}

func swappedBCD(b byte) (int, bool) {
	lo, hi := b&0x0F, b>>4
	if lo > 9 || hi > 9 {
		return 0, false
	}
	return int(lo)*10 + int(hi), true
}

func decodeUserData(ud []byte, udl int, alphabet Alphabet, hasHeader bool) (string, error) {
	if alphabet == AlphabetGSM7 {
		septets, err := unpackSeptets(ud, udl)
		if err != nil {
			return "", err
		}
		if hasHeader {
			if len(ud) == 0 {
				return "", ErrTruncated
			}
			// Header octets plus fill bits round up to a septet boundary.
			skip := ((int(ud[0])+1)*8 + 6) / 7
			if skip > len(septets) {
				return "", ErrTruncated
			}
			septets = septets[skip:]
		}
		return decodeGSM7(septets), nil
	}

	if udl > len(ud) {
		return "", ErrTruncated
	}
	data := ud[:udl]
	if hasHeader {
		if len(data) == 0 || int(data[0])+1 > len(data) {
			return "", ErrTruncated
		}
		data = data[int(data[0])+1:]
	}

	switch alphabet {
	case AlphabetUCS2:
		if len(data)%2 != 0 {
			return "", fmt.Errorf("%w: odd ucs2 length %d", ErrTruncated, len(data))
		}
		text, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode ucs2: %w", err)
		}
		return string(text), nil
	case Alphabet8Bit:
		text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode 8-bit: %w", err)
		}
		return string(text), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, alphabet)
	}
}
