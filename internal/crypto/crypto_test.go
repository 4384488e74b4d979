package crypto

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"testing"

	"keymaker/internal/errors"
)

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(12)
	if err != nil {
		t.Fatalf("RandomBytes(12) failed: %v", err)
	}
	if len(a) != 12 {
		t.Errorf("length = %d; want 12", len(a))
	}

	b, err := RandomBytes(12)
	if err != nil {
		t.Fatalf("RandomBytes(12) failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two nonces should differ")
	}

	if _, err := RandomBytes(0); err == nil {
		t.Error("RandomBytes(0) should fail")
	}
}

func TestScryptParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params ScryptParams
		valid  bool
	}{
		{"default profile", ScryptParams{N: 131072, R: 8, P: 6}, true},
		{"hash params", ScryptParams{N: 65536, R: 8, P: 1}, true},
		{"minimum", ScryptParams{N: 2, R: 1, P: 1}, true},
		{"N one", ScryptParams{N: 1, R: 8, P: 1}, false},
		{"N zero", ScryptParams{N: 0, R: 8, P: 1}, false},
		{"N not power of two", ScryptParams{N: 100000, R: 8, P: 1}, false},
		{"r zero", ScryptParams{N: 16, R: 0, P: 1}, false},
		{"p zero", ScryptParams{N: 16, R: 1, P: 0}, false},
		{"r*p too large", ScryptParams{N: 16, R: 1 << 15, P: 1 << 15}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() = %v; want nil", err)
			}
			if !tt.valid && !errors.Is(err, errors.ErrInvalidParams) {
				t.Errorf("Validate() = %v; want ErrInvalidParams", err)
			}
		})
	}
}

func TestScryptParamsString(t *testing.T) {
	if got := (ScryptParams{N: 65536, R: 8, P: 1}).String(); got != "scrypt-65536-8-1" {
		t.Errorf("String() = %q", got)
	}
}

func TestScryptParamsMemory(t *testing.T) {
	tests := []struct {
		params ScryptParams
		want   int64
	}{
		{ScryptParams{N: 16, R: 1, P: 1}, 2048},
		{ScryptParams{N: 65536, R: 8, P: 1}, 64 << 20},
		{ScryptParams{N: 131072, R: 8, P: 6}, 128 << 20},
	}
	for _, tt := range tests {
		if got := tt.params.Memory(); got != tt.want {
			t.Errorf("%v.Memory() = %d; want %d", tt.params, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	names := Backends()
	if len(names) < 2 {
		t.Fatalf("Backends() = %v; want at least xcrypto and reference", names)
	}

	for _, name := range []string{BackendXCrypto, BackendReference, DefaultBackend} {
		if _, err := Lookup(name); err != nil {
			t.Errorf("Lookup(%q) failed: %v", name, err)
		}
	}

	if _, err := Lookup("argon2"); !errors.Is(err, errors.ErrUnknownBackend) {
		t.Errorf("Lookup(unknown) = %v; want ErrUnknownBackend", err)
	}
}

func allBackends(t *testing.T) map[string]Backend {
	t.Helper()
	out := map[string]Backend{"parallel-reference": NewReferenceBackend(4)}
	for _, name := range Backends() {
		b, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", name, err)
		}
		out[name] = b
	}
	return out
}

// RFC 7914 section 12 test vectors.
func TestBackendsRFC7914(t *testing.T) {
	vectors := []struct {
		password, salt string
		params         ScryptParams
		want           string
	}{
		{
			"", "", ScryptParams{N: 16, R: 1, P: 1},
			"77d6576238657b203b19ca42c18a0497f16b4844e3074ae8dfdffa3fede21442" +
				"fcd0069ded0948f8326a753a0fc81f17e8d3e0fb2e0d3628cf35e20c38d18906",
		},
		{
			"password", "NaCl", ScryptParams{N: 1024, R: 8, P: 16},
			"fdbabe1c9d3472007856e7190d01e9fe7c6ad7cbc8237830e77376634b373162" +
				"2eaf30d92e22a3886ff109279d9830dac727afb94a83ee6d8360cbdfa2cc0640",
		},
	}

	for name, backend := range allBackends(t) {
		for _, v := range vectors {
			out := make([]byte, 64)
			if err := backend.Derive(v.params, []byte(v.password), []byte(v.salt), out); err != nil {
				t.Fatalf("%s: Derive(%s) failed: %v", name, v.params, err)
			}
			if got := hex.EncodeToString(out); got != v.want {
				t.Errorf("%s: Derive(%s) = %s; want %s", name, v.params, got, v.want)
			}
		}
	}
}

func TestBackendsConformance(t *testing.T) {
	xc, err := Lookup(BackendXCrypto)
	if err != nil {
		t.Fatal(err)
	}
	ref := NewReferenceBackend(3)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		params := ScryptParams{N: 1 << (1 + rng.Intn(8)), R: 1 + rng.Intn(4), P: 1 + rng.Intn(4)}
		input := make([]byte, rng.Intn(80))
		salt := make([]byte, rng.Intn(20))
		rng.Read(input)
		rng.Read(salt)
		n := 1 + rng.Intn(300)

		a := make([]byte, n)
		b := make([]byte, n)
		if err := xc.Derive(params, input, salt, a); err != nil {
			t.Fatalf("xcrypto Derive(%s) failed: %v", params, err)
		}
		if err := ref.Derive(params, input, salt, b); err != nil {
			t.Fatalf("reference Derive(%s) failed: %v", params, err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("backends disagree for %s, %d bytes", params, n)
		}
	}
}

func TestBackendsOutputPrefix(t *testing.T) {
	// Shorter outputs are prefixes of longer ones, so a 32-byte key and a
	// 64-byte hash over the same input agree on their first 32 bytes.
	for name, backend := range allBackends(t) {
		params := ScryptParams{N: 16, R: 2, P: 1}
		short := make([]byte, 32)
		long := make([]byte, 64)
		if err := backend.Derive(params, []byte("in"), []byte("salt"), short); err != nil {
			t.Fatal(err)
		}
		if err := backend.Derive(params, []byte("in"), []byte("salt"), long); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(short, long[:32]) {
			t.Errorf("%s: 32-byte output is not a prefix of 64-byte output", name)
		}
	}
}

func TestBackendsErrors(t *testing.T) {
	for name, backend := range allBackends(t) {
		err := backend.Derive(ScryptParams{N: 100, R: 8, P: 1}, []byte("x"), []byte("y"), make([]byte, 8))
		if !errors.Is(err, errors.ErrInvalidParams) {
			t.Errorf("%s: non power of two N: got %v; want ErrInvalidParams", name, err)
		}

		var cryptoErr *errors.CryptoError
		if !errors.As(err, &cryptoErr) || cryptoErr.Op != "scrypt" {
			t.Errorf("%s: error should be a scrypt CryptoError: %v", name, err)
		}

		err = backend.Derive(ScryptParams{N: 16, R: 1, P: 1}, []byte("x"), []byte("y"), nil)
		if !errors.Is(err, errors.ErrInvalidOutputLength) {
			t.Errorf("%s: empty output: got %v; want ErrInvalidOutputLength", name, err)
		}
	}
}

func TestParseCipherKind(t *testing.T) {
	tests := []struct {
		in   string
		want CipherKind
		ok   bool
	}{
		{"aes", CipherAES, true},
		{"AES", CipherAES, true},
		{"", CipherAES, true},
		{"serpent", CipherSerpent, true},
		{"chacha", "", false},
	}

	for _, tt := range tests {
		got, err := ParseCipherKind(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseCipherKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
		if !tt.ok && !errors.Is(err, errors.ErrUnknownCipher) {
			t.Errorf("ParseCipherKind(%q) error = %v; want ErrUnknownCipher", tt.in, err)
		}
	}
}

func TestStreamCipherRoundTrip(t *testing.T) {
	key := make([]byte, CipherKeySize)
	iv := make([]byte, CipherIVSize)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range iv {
		iv[i] = byte(100 + i)
	}

	plaintext := bytes.Repeat([]byte("identity key material "), 50)
	ciphertexts := map[CipherKind][]byte{}

	for _, kind := range []CipherKind{CipherAES, CipherSerpent} {
		t.Run(string(kind), func(t *testing.T) {
			buf := append([]byte(nil), plaintext...)

			enc, err := NewStreamCipher(kind, key, iv)
			if err != nil {
				t.Fatalf("NewStreamCipher() failed: %v", err)
			}
			enc.Apply(buf)
			enc.Close()
			if bytes.Equal(buf, plaintext) {
				t.Fatal("ciphertext should differ from plaintext")
			}
			ciphertexts[kind] = append([]byte(nil), buf...)

			dec, err := NewStreamCipher(kind, key, iv)
			if err != nil {
				t.Fatalf("NewStreamCipher() failed: %v", err)
			}
			dec.Apply(buf)
			if !bytes.Equal(buf, plaintext) {
				t.Error("applying the keystream twice should restore the plaintext")
			}
		})
	}

	if bytes.Equal(ciphertexts[CipherAES], ciphertexts[CipherSerpent]) {
		t.Error("AES and Serpent keystreams should differ")
	}
}

func TestStreamCipherWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{1}, CipherKeySize)
	wrong := bytes.Repeat([]byte{2}, CipherKeySize)
	iv := make([]byte, CipherIVSize)
	plaintext := []byte("sixteen byte msg and more")

	buf := append([]byte(nil), plaintext...)
	enc, _ := NewStreamCipher(CipherAES, key, iv)
	enc.Apply(buf)

	dec, _ := NewStreamCipher(CipherAES, wrong, iv)
	dec.Apply(buf)
	if bytes.Equal(buf, plaintext) {
		t.Error("decrypting with the wrong key should not restore the plaintext")
	}
}

func TestStreamCipherBadSizes(t *testing.T) {
	_, err := NewStreamCipher(CipherAES, make([]byte, 16), make([]byte, CipherIVSize))
	if !errors.Is(err, errors.ErrCipherFailure) {
		t.Errorf("short key: got %v; want ErrCipherFailure", err)
	}
	_, err = NewStreamCipher(CipherKind("rc4"), make([]byte, CipherKeySize), make([]byte, CipherIVSize))
	if !errors.Is(err, errors.ErrUnknownCipher) {
		t.Errorf("unknown kind: got %v; want ErrUnknownCipher", err)
	}
}
