package sms

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

const (
	maxGSM7Septets     = 160
	maxUCS2Octets      = 140
	maxAlphanumericLen = 11

	firstOctetDeliver = 0x04 // SMS-DELIVER, no more messages waiting
	toaUnknown        = 0x81
	toaInternational  = 0x91
	toaAlphanumeric   = 0xD0
	dcsGSM7           = 0x00
	dcsUCS2           = 0x08
)

var (
	// ErrBodyTooLong reports a body that does not fit a single SMS.
	ErrBodyTooLong = errors.New("sms: body does not fit in one message")
	// ErrInvalidSender reports an originating address that cannot be encoded.
	ErrInvalidSender = errors.New("sms: invalid sender")
)

// EncodeDeliver builds a single-part SMS-DELIVER PDU with an empty SMSC field.
// Numeric senders are BCD encoded; anything else is sent as an alphanumeric
// address. The body uses GSM 7-bit when possible and UCS-2 otherwise.
func EncodeDeliver(sender, body string, sentAt time.Time) ([]byte, error) {
	address, err := encodeAddress(sender)
	if err != nil {
		return nil, err
	}

	pdu := []byte{0x00, firstOctetDeliver}
	pdu = append(pdu, address...)
	pdu = append(pdu, 0x00) // TP-PID

	if septets, ok := encodeGSM7(body); ok {
		if len(septets) > maxGSM7Septets {
			return nil, fmt.Errorf("%w: %d septets", ErrBodyTooLong, len(septets))
		}
		pdu = append(pdu, dcsGSM7)
		pdu = append(pdu, encodeTimestamp(sentAt)...)
		pdu = append(pdu, byte(len(septets)))
		return append(pdu, packSeptets(septets)...), nil
	}

	ucs2, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("encode ucs2: %w", err)
	}
	if len(ucs2) > maxUCS2Octets {
		return nil, fmt.Errorf("%w: %d octets", ErrBodyTooLong, len(ucs2))
	}
	pdu = append(pdu, dcsUCS2)
	pdu = append(pdu, encodeTimestamp(sentAt)...)
	pdu = append(pdu, byte(len(ucs2)))
	return append(pdu, ucs2...), nil
}

func encodeAddress(sender string) ([]byte, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSender)
	}

	if digits, international, ok := numericAddress(sender); ok {
		toa := byte(toaUnknown)
		if international {
			toa = toaInternational
		}
		out := []byte{byte(len(digits)), toa}
		return append(out, encodeSemiOctets(digits)...), nil
	}

	septets, ok := encodeGSM7(sender)
	if !ok || len(septets) > maxAlphanumericLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSender, sender)
	}
	packed := packSeptets(septets)
	semiOctets := (len(septets)*7 + 3) / 4
	out := []byte{byte(semiOctets), toaAlphanumeric}
	return append(out, packed...), nil
}

func numericAddress(sender string) (digits string, international bool, ok bool) {
	if strings.HasPrefix(sender, "+") {
		international = true
		sender = sender[1:]
	}
	if sender == "" || len(sender) > 20 {
		return "", false, false
	}
	for _, r := range sender {
		if r < '0' || r > '9' {
			return "", false, false
		}
	}
	return sender, international, true
}

func encodeSemiOctets(digits string) []byte {
	out := make([]byte, (len(digits)+1)/2)
	for i := range out {
		out[i] = 0xF0
	}
	for i := 0; i < len(digits); i++ {
		v := digits[i] - '0'
		if i%2 == 0 {
			out[i/2] = (out[i/2] & 0xF0) | v
		} else {
			out[i/2] = (out[i/2] & 0x0F) | v<<4
		}
	}
	return out
}

func encodeTimestamp(t time.Time) []byte {
	if t.IsZero() {
		t = time.Now()
	}
	_, offset := t.Zone()
	negative := offset < 0
	if negative {
		offset = -offset
	}
	quarters := offset / (15 * 60)

	out := []byte{
		toSwappedBCD(t.Year() % 100),
		toSwappedBCD(int(t.Month())),
		toSwappedBCD(t.Day()),
		toSwappedBCD(t.Hour()),
		toSwappedBCD(t.Minute()),
		toSwappedBCD(t.Second()),
		toSwappedBCD(quarters),
	}
	if negative {
		out[6] |= 0x08
	}
	return out
}

func toSwappedBCD(v int) byte {
	return byte(v%10)<<4 | byte(v/10%10)
}
