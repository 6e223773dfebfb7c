package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Confirmation codes skip visually ambiguous characters (0/O, 1/I/L) so they
// survive being read over the phone.
const (
	confirmationCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	confirmationCodeLength   = 6
)

// newConfirmationCode draws a random code. Uniqueness is enforced by the
// store's constraint; collisions are handled by re-drawing.
func newConfirmationCode() (ConfirmationCode, error) {
	alphabetSize := big.NewInt(int64(len(confirmationCodeAlphabet)))
	characters := make([]byte, confirmationCodeLength)
	for index := range characters {
		position, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return ConfirmationCode{}, fmt.Errorf("draw confirmation code: %w", err)
		}
		characters[index] = confirmationCodeAlphabet[position.Int64()]
	}
	return ConfirmationCode{value: string(characters)}, nil
}
