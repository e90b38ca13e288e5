//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseUserID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
// Fuzz tests verify no panics and consistent invariants.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("175928847299117063")
	f.Add("0")
	f.Add("00012")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("18446744073709551615")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err != nil {
			if id != "" {
				t.Errorf("error returned with non-empty id %q", id)
			}
			return
		}

		roundTrip, err := ParseUserID(id.String())
		if err != nil {
			t.Errorf("valid id failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Error("round-trip changed id value")
		}
	})
}
