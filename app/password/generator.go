package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// ErrGenerationFailed signals that no strong password came out of the
// bounded number of attempts. With the fixed alphabet this is practically
// unreachable; seeing it means a defect, not bad luck.
var ErrGenerationFailed = errors.New("could not generate a strong password")

const (
	generatedLength = 20
	maxAttempts     = 100
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" + Specials

// Generate produces a random 20-character password satisfying IsStrong.
func Generate() (string, error) {
	max := big.NewInt(int64(len(alphabet)))

	for attempt := 0; attempt < maxAttempts; attempt++ {
		buf := make([]byte, generatedLength)
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			buf[i] = alphabet[n.Int64()]
		}
		if candidate := string(buf); IsStrong(candidate) {
			return candidate, nil
		}
	}
	return "", ErrGenerationFailed
}
