package outcome

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
)

// Source supplies the randomness behind commitments and prize codes.
// Implementations must be safe for concurrent use.
type Source interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// Intn returns a value in [0, n). It panics if n <= 0.
	Intn(n int) int
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// SeededSource is a deterministic source for reproducible games and tests.
type SeededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSource returns a deterministic source for seed.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *SeededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *SeededSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// SecureSource draws from crypto/rand.
type SecureSource struct{}

// NewSecureSource returns the production source.
func NewSecureSource() SecureSource {
	return SecureSource{}
}

// Float64 uses 53 random bits, the same construction math/rand uses.
func (SecureSource) Float64() float64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

func (SecureSource) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return int(v.Int64())
}

// NewSource picks a seeded source when seed is non-zero and the secure source otherwise.
func NewSource(seed int64) Source {
	if seed != 0 {
		return NewSeededSource(seed)
	}
	return NewSecureSource()
}
