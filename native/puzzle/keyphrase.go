package puzzle

import (
	"strings"
	"unicode"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/unicode/norm"
)

// SanitizeKeyphrase folds the input to NFKC, drops every Unicode whitespace
// rune and lower-cases the rest, so "Banana Split" and "bananasplit" are the
// same answer whichever way the accents were typed.
func SanitizeKeyphrase(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, norm.NFKC.String(input))
}

// HashKeyphrase returns the keccak256 digest of the sanitized keyphrase.
func HashKeyphrase(keyphrase string) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(SanitizeKeyphrase(keyphrase))))
	return out
}

func sanitizePuzzleID(id string) string {
	return strings.TrimSpace(id)
}
