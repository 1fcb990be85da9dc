// Package sources provides transport.Source implementations that feed raw
// SMS delivery events into the listener.
package sources

import (
	"encoding/hex"
	"strings"
)

// decodeFragments hex-decodes each fragment. Fragments that are not valid
// hex become empty so the adapter skips them without dropping the rest.
func decodeFragments(encoded []string) (pdus [][]byte, invalid int) {
	pdus = make([][]byte, 0, len(encoded))
	for _, s := range encoded {
		raw, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil {
			invalid++
			raw = nil
		}
		pdus = append(pdus, raw)
	}
	return pdus, invalid
}
