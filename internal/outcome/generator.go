// Package outcome pre-commits round outcomes before a session is played.
package outcome

import (
	"fmt"

	"github.com/xiaot623/treeleaf/internal/apperrors"
	"github.com/xiaot623/treeleaf/internal/domain"
)

// Generator produces the committed outcome sequence of a new session.
type Generator interface {
	Generate(totalAttempts int, winProbability float64) (domain.Commitments, error)
}

// RandomGenerator draws each round independently from a Source.
type RandomGenerator struct {
	src Source
}

// NewGenerator creates a generator over src.
func NewGenerator(src Source) *RandomGenerator {
	return &RandomGenerator{src: src}
}

// Generate returns totalAttempts commitments. A round is winnable with probability p and
// then names A or B with equal chance as the winning face.
func (g *RandomGenerator) Generate(totalAttempts int, p float64) (domain.Commitments, error) {
	if err := validateParams(totalAttempts, p); err != nil {
		return nil, err
	}

	out := make(domain.Commitments, totalAttempts)
	for i := range out {
		if g.src.Float64() >= p {
			out[i] = domain.NeitherWins
			continue
		}
		if g.src.Intn(2) == 0 {
			out[i] = domain.FaceAWins
		} else {
			out[i] = domain.FaceBWins
		}
	}
	return out, nil
}

// Fixed replays a predetermined sequence. It is used to script games.
type Fixed domain.Commitments

// Generate returns a copy of the fixed sequence, truncated or padded with NeitherWins.
func (f Fixed) Generate(totalAttempts int, p float64) (domain.Commitments, error) {
	if err := validateParams(totalAttempts, p); err != nil {
		return nil, err
	}
	out := make(domain.Commitments, totalAttempts)
	copy(out, f)
	return out, nil
}

func validateParams(totalAttempts int, p float64) error {
	if totalAttempts < 1 {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("total attempts must be >= 1, got %d", totalAttempts))
	}
	if !(p > 0 && p < 1) {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("win probability must be in (0,1), got %v", p))
	}
	return nil
}
