// Package passgen turns pseudorandom integers into human-typeable passwords.
//
// A password is drawn from up to four charset partitions (digits, lowercase,
// uppercase, symbols). Encode guarantees that every partition contributes at
// least one character and that the output has exactly one character per input
// integer. Everything here is deterministic: the same partitions and integers
// always produce the same password.
package passgen

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	"keymaker/internal/errors"

	"github.com/Picocrypt/zxcvbn-go"
)

// Character tables. Order matters: derived passwords depend on it.
const (
	Chars                 = "23456789abcdefghijkmnopqrstuvxywzABCDEFGHJKLMNPQRSTUVWXYZ"
	CharsAmbiguous        = "01lIO"
	CharsSymbols          = "_.-"
	CharsSymbolsAmbiguous = "`~!@#$%^&*()+={}[]\\|:;\"'<>,?/"
)

// Settings controls which characters a password may contain and its length.
type Settings struct {
	AllowAmbiguousChars bool  `yaml:"allow_ambiguous_chars"`
	IncludeSymbol       bool  `yaml:"include_symbol"`
	Length              uint8 `yaml:"length"`
}

// alphabet returns every allowed character for s, in table order.
func alphabet(s Settings) []byte {
	chars := []byte(Chars)
	if s.AllowAmbiguousChars {
		chars = append(chars, CharsAmbiguous...)
	}
	if s.IncludeSymbol {
		chars = append(chars, CharsSymbols...)
		if s.AllowAmbiguousChars {
			chars = append(chars, CharsSymbolsAmbiguous...)
		}
	}
	return chars
}

// Charsets splits the alphabet allowed by s into ordered partitions:
// digits, lowercase, uppercase, then everything else. Empty partitions are
// dropped. Length is ignored.
func Charsets(s Settings) [][]byte {
	var digits, lower, upper, symbols []byte
	for _, c := range alphabet(s) {
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c >= 'a' && c <= 'z':
			lower = append(lower, c)
		case c >= 'A' && c <= 'Z':
			upper = append(upper, c)
		default:
			symbols = append(symbols, c)
		}
	}

	partitions := make([][]byte, 0, 4)
	for _, p := range [][]byte{digits, lower, upper, symbols} {
		if len(p) > 0 {
			partitions = append(partitions, p)
		}
	}
	return partitions
}

// Encode builds a password of len(numbers) characters from partitions.
//
// Each partition receives a share of the password proportional to its size,
// weighted by the leading integers, with a floor of one character. Characters
// are then picked per partition and finally drawn without replacement from
// the pool, all driven by numbers.
//
// Returns ErrInvalidCharsets when partitions is empty, contains an empty
// partition, or has more entries than numbers.
func Encode(partitions [][]byte, numbers []uint16) ([]byte, error) {
	k := len(partitions)
	n := len(numbers)
	if k == 0 || n == 0 || n < k {
		return nil, fmt.Errorf("%w: %d partitions for %d characters", errors.ErrInvalidCharsets, k, n)
	}

	// Weights use the password length as unit so their sum always exceeds it
	// and the counts can be computed with integers only.
	weights := make([]int, k)
	sum := 0
	for i, p := range partitions {
		size := len(p)
		if size == 0 {
			return nil, fmt.Errorf("%w: partition %d is empty", errors.ErrInvalidCharsets, i)
		}
		if size > math.MaxInt/math.MaxUint16 {
			return nil, fmt.Errorf("%w: partition %d is too large", errors.ErrInvalidCharsets, i)
		}
		w := n + int(numbers[i])*size
		if w > math.MaxInt/size || sum > math.MaxInt-w {
			return nil, fmt.Errorf("%w: weight overflow", errors.ErrInvalidCharsets)
		}
		weights[i] = w
		sum += w
	}

	factor := sum / n
	counts := make([]int, k)
	total := 0
	for i, w := range weights {
		counts[i] = max(1, w/factor)
		total += counts[i]
	}

	// Top up from the same integers that later drive the shuffle, indexed by
	// the running total.
	for total < n {
		counts[int(numbers[total])%k]++
		total++
	}
	// Rounding can overshoot for tiny weights; take the excess back from the
	// largest partitions first without going below one.
	for total > n {
		largest := 0
		for i := range counts {
			if counts[i] > counts[largest] {
				largest = i
			}
		}
		counts[largest]--
		total--
	}

	pool := make([]byte, 0, n)
	offset := 0
	for i, p := range partitions {
		for _, v := range numbers[offset : offset+counts[i]] {
			pool = append(pool, p[int(v)%len(p)])
		}
		offset += counts[i]
	}

	out := make([]byte, 0, n)
	for _, v := range numbers {
		j := int(v) % len(pool)
		out = append(out, pool[j])
		pool = append(pool[:j], pool[j+1:]...)
	}
	return out, nil
}

// Entropy estimates the password entropy in bits for s.
//
// With symbols enabled one position is assumed to hold a symbol:
// log2(alnum^(length-1) + symbols*length). Otherwise log2(alnum^length).
// The coverage guarantee of Encode is not accounted for, so the figure is
// guidance only and never a security bound.
func Entropy(s Settings) float64 {
	if s.Length == 0 {
		return 0
	}

	alnum := float64(len(Chars))
	if s.AllowAmbiguousChars {
		alnum += float64(len(CharsAmbiguous))
	}

	if !s.IncludeSymbol {
		return math.Log2(math.Pow(alnum, float64(s.Length)))
	}

	symbols := len(CharsSymbols)
	if s.AllowAmbiguousChars {
		symbols += len(CharsSymbolsAmbiguous)
	}
	space := math.Pow(alnum, float64(s.Length)-1) + float64(symbols*int(s.Length))
	return math.Log2(space)
}

// Sample encodes a password for s from fresh random integers. It is not
// derived from any identity and only serves to preview what s produces.
func Sample(s Settings) ([]byte, error) {
	if s.Length == 0 {
		return nil, fmt.Errorf("%w: zero length", errors.ErrInvalidCharsets)
	}
	raw := make([]byte, 2*int(s.Length))
	if _, err := rand.Read(raw); err != nil {
		return nil, errors.NewCryptoError("rand", fmt.Errorf("%w: %v", errors.ErrRandFailure, err))
	}
	return Encode(Charsets(s), Numbers(raw))
}

// Numbers reads raw as consecutive big-endian 16-bit integers.
// A trailing odd byte is ignored.
func Numbers(raw []byte) []uint16 {
	numbers := make([]uint16, len(raw)/2)
	for i := range numbers {
		numbers[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return numbers
}

// Strength scores password on the zxcvbn 0-4 scale.
func Strength(password []byte) int {
	return zxcvbn.PasswordStrength(string(password), nil).Score
}
