package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Commitment is a round outcome fixed when the session is created.
type Commitment uint8

const (
	NeitherWins Commitment = iota
	FaceAWins
	FaceBWins
)

// WinningFace returns the face that wins this round, if any.
func (c Commitment) WinningFace() (Face, bool) {
	switch c {
	case FaceAWins:
		return FaceA, true
	case FaceBWins:
		return FaceB, true
	default:
		return "", false
	}
}

// Resolve plays choice against the commitment. On a loss the face the player did not
// choose is shown, whichever way the commitment was drawn.
func (c Commitment) Resolve(choice Face) (isWin bool, shown Face) {
	if face, ok := c.WinningFace(); ok && face == choice {
		return true, choice
	}
	return false, choice.Other()
}

func (c Commitment) symbol() byte {
	switch c {
	case FaceAWins:
		return 'A'
	case FaceBWins:
		return 'B'
	default:
		return 'N'
	}
}

// Commitments is the ordered, opaque outcome sequence of a session.
// It is stored as one character per round and never serialized to clients.
type Commitments []Commitment

// Encode returns the storage form, e.g. "ANBN".
func (cs Commitments) Encode() string {
	var b strings.Builder
	b.Grow(len(cs))
	for _, c := range cs {
		b.WriteByte(c.symbol())
	}
	return b.String()
}

// DecodeCommitments parses the storage form produced by Encode.
func DecodeCommitments(s string) (Commitments, error) {
	out := make(Commitments, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A':
			out[i] = FaceAWins
		case 'B':
			out[i] = FaceBWins
		case 'N':
			out[i] = NeitherWins
		default:
			return nil, fmt.Errorf("invalid commitment symbol %q at %d", s[i], i)
		}
	}
	return out, nil
}

// Value implements driver.Valuer.
func (cs Commitments) Value() (driver.Value, error) {
	return cs.Encode(), nil
}

// Scan implements sql.Scanner.
func (cs *Commitments) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*cs = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Commitments", src)
	}
	decoded, err := DecodeCommitments(s)
	if err != nil {
		return err
	}
	*cs = decoded
	return nil
}

// MarshalJSON hides the sequence from any JSON encoding.
func (cs Commitments) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}
