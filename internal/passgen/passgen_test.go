package passgen

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"keymaker/internal/errors"
)

func TestCharsetsPartitionSizes(t *testing.T) {
	cases := []struct {
		ambiguous, symbol bool
		want              []int
	}{
		{false, false, []int{8, 25, 24}},
		{false, true, []int{8, 25, 24, 3}},
		{true, false, []int{10, 26, 26}},
		{true, true, []int{10, 26, 26, 32}},
	}

	for _, tc := range cases {
		partitions := Charsets(Settings{AllowAmbiguousChars: tc.ambiguous, IncludeSymbol: tc.symbol})
		var sizes []int
		for _, p := range partitions {
			sizes = append(sizes, len(p))
		}
		require.Equal(t, tc.want, sizes, "ambiguous=%v symbol=%v", tc.ambiguous, tc.symbol)
	}
}

func TestCharsetsOrder(t *testing.T) {
	partitions := Charsets(Settings{IncludeSymbol: true})
	require.Equal(t, "23456789", string(partitions[0]))
	require.Equal(t, "abcdefghijkmnopqrstuvxywz", string(partitions[1]))
	require.Equal(t, "ABCDEFGHJKLMNPQRSTUVWXYZ", string(partitions[2]))
	require.Equal(t, "_.-", string(partitions[3]))
}

func TestCharsetTables(t *testing.T) {
	require.Len(t, Chars, 57)
	require.Len(t, CharsAmbiguous, 5)
	require.Len(t, CharsSymbols, 3)
	require.Len(t, CharsSymbolsAmbiguous, 29)
}

func TestEntropy(t *testing.T) {
	def := Settings{IncludeSymbol: true, Length: 12}
	require.Equal(t, 65.0, math.Ceil(Entropy(def)))

	all := Settings{AllowAmbiguousChars: true, IncludeSymbol: true, Length: 12}
	require.Equal(t, 66.0, math.Ceil(Entropy(all)))

	plain := Settings{Length: 12}
	require.InDelta(t, 12*math.Log2(57), Entropy(plain), 1e-9)
}

func TestEntropyEmpty(t *testing.T) {
	for _, s := range []Settings{
		{},
		{IncludeSymbol: true},
		{IncludeSymbol: true, AllowAmbiguousChars: true},
	} {
		require.Zero(t, Entropy(s), "%+v", s)
	}
	require.Positive(t, Entropy(Settings{IncludeSymbol: true, Length: 1}))
}

func TestEncodeKnownOutput(t *testing.T) {
	partitions := [][]byte{[]byte("0123"), []byte("ab")}
	numbers := []uint16{0, 0, 0, 0}

	// weights 4,4; factor 2; counts 2,2; pool "00aa"; shuffle takes index 0
	// each time.
	out, err := Encode(partitions, numbers)
	require.NoError(t, err)
	require.Equal(t, "00aa", string(out))
}

func TestEncodeTopUpAndShuffle(t *testing.T) {
	partitions := [][]byte{[]byte("xyz"), []byte("AB")}
	numbers := []uint16{1, 0, 1, 2, 5}

	// weights 5+3=8, 5+0=5; factor 13/5=2; counts 4,2 -> overshoot by one,
	// the largest gives one back: 3,2. pool from numbers[0:3] -> "yxy",
	// numbers[3:5] -> "AB" (2%2=0, 5%2=1).
	// shuffle over "yxyAB": 1->x "yyAB", 0->y "yAB", 1->A "yB", 2%2=0->y "B", 5%1=0->B.
	out, err := Encode(partitions, numbers)
	require.NoError(t, err)
	require.Equal(t, "xyAyB", string(out))
}

func TestEncodeInvalid(t *testing.T) {
	_, err := Encode(nil, []uint16{1, 2})
	require.ErrorIs(t, err, errors.ErrInvalidCharsets)

	_, err = Encode([][]byte{[]byte("ab"), {}}, []uint16{1, 2})
	require.ErrorIs(t, err, errors.ErrInvalidCharsets)

	_, err = Encode([][]byte{[]byte("ab"), []byte("cd")}, []uint16{1})
	require.ErrorIs(t, err, errors.ErrInvalidCharsets)

	_, err = Encode([][]byte{[]byte("ab")}, nil)
	require.ErrorIs(t, err, errors.ErrInvalidCharsets)
}

func TestEncodeLengthAndCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	settings := []Settings{
		{},
		{IncludeSymbol: true},
		{AllowAmbiguousChars: true},
		{AllowAmbiguousChars: true, IncludeSymbol: true},
	}

	for _, s := range settings {
		partitions := Charsets(s)
		for length := len(partitions); length <= 64; length++ {
			for trial := 0; trial < 20; trial++ {
				numbers := make([]uint16, length)
				for i := range numbers {
					// Mix in small values so the rounding edge cases get hit.
					if rng.Intn(4) == 0 {
						numbers[i] = uint16(rng.Intn(3))
					} else {
						numbers[i] = uint16(rng.Intn(math.MaxUint16 + 1))
					}
				}

				out, err := Encode(partitions, numbers)
				require.NoError(t, err)
				require.Len(t, out, length)
				for i, p := range partitions {
					require.True(t, bytes.ContainsAny(out, string(p)),
						"partition %d missing from %q (settings %+v)", i, out, s)
				}
				for _, c := range out {
					require.True(t, bytes.IndexByte(alphabet(s), c) >= 0, "unexpected char %q", c)
				}
			}
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	partitions := Charsets(Settings{IncludeSymbol: true})
	numbers := []uint16{65535, 1, 300, 4242, 7, 9, 12000, 3, 0, 60000, 17, 255}

	a, err := Encode(partitions, numbers)
	require.NoError(t, err)
	b, err := Encode(partitions, numbers)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNumbers(t *testing.T) {
	require.Equal(t, []uint16{0x0102, 0xfffe}, Numbers([]byte{1, 2, 0xff, 0xfe, 9}))
	require.Empty(t, Numbers(nil))
}

func TestSample(t *testing.T) {
	s := Settings{IncludeSymbol: true, Length: 16}
	pw, err := Sample(s)
	require.NoError(t, err)
	require.Len(t, pw, 16)

	score := Strength(pw)
	require.GreaterOrEqual(t, score, 0)
	require.LessOrEqual(t, score, 4)

	_, err = Sample(Settings{})
	require.ErrorIs(t, err, errors.ErrInvalidCharsets)
}
