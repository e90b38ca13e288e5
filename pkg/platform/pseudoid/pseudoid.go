// Package pseudoid derives stable, non-reversible correlation identifiers for
// users so audit rows and logs can be grouped without exposing the raw id.
package pseudoid

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"

	"warden/pkg/domain"
)

// Length is the number of hex characters kept from the digest.
const Length = 16

// Hasher computes keyed pseudo-identifiers. The pepper is the blake2b key;
// rotating it breaks correlation with older rows.
type Hasher struct {
	pepper []byte
}

// New returns a Hasher. An empty pepper is allowed for development but makes
// the identifiers guessable from the id space.
func New(pepper string) (*Hasher, error) {
	if len(pepper) > blake2b.Size {
		return nil, errors.New("pseudo-id pepper must be at most 64 bytes")
	}
	return &Hasher{pepper: []byte(pepper)}, nil
}

// Of returns the pseudo-identifier for userID.
func (h *Hasher) Of(userID domain.UserID) string {
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		// Unreachable: key length is validated in New.
		panic(err)
	}
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))[:Length]
}
