// Package domain defines the core domain models for the game service.
package domain

import (
	"fmt"
	"strings"
)

// SessionStatus represents the lifecycle state of a game session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusWon     SessionStatus = "won"
	SessionStatusLost    SessionStatus = "lost"
	SessionStatusExpired SessionStatus = "expired"
)

// IsTerminal reports whether no further transitions or rounds are allowed.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionStatusActive
}

// PackageType is the purchased bundle of attempts.
type PackageType string

const (
	PackageSingle PackageType = "single"
	PackageMulti  PackageType = "multi"
)

// TotalAttempts returns how many rounds the package buys. Multi is three paid attempts plus one bonus.
func (p PackageType) TotalAttempts() int {
	switch p {
	case PackageSingle:
		return 1
	case PackageMulti:
		return 4
	default:
		return 0
	}
}

// PriceMultiplier is the number of single-package prices the package costs.
func (p PackageType) PriceMultiplier() int64 {
	switch p {
	case PackageSingle:
		return 1
	case PackageMulti:
		return 3
	default:
		return 0
	}
}

// ParsePackageType accepts "single" and "multi" ("triple" is kept as an alias of multi).
func ParsePackageType(s string) (PackageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return PackageSingle, nil
	case "multi", "triple":
		return PackageMulti, nil
	default:
		return "", fmt.Errorf("unknown package type %q", s)
	}
}

// Face is one of the two choices offered each round.
type Face string

const (
	FaceA Face = "A"
	FaceB Face = "B"
)

// Other returns the face that was not given.
func (f Face) Other() Face {
	if f == FaceA {
		return FaceB
	}
	return FaceA
}

// Valid reports whether f is A or B.
func (f Face) Valid() bool {
	return f == FaceA || f == FaceB
}

// ParseFace accepts "A"/"B" in any case, and the storefront names "tree" (A) and "leaf" (B).
func ParseFace(s string) (Face, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "tree":
		return FaceA, nil
	case "b", "leaf":
		return FaceB, nil
	default:
		return "", fmt.Errorf("unknown face %q", s)
	}
}

// PrizeCodeStatus represents the state of a prize code.
type PrizeCodeStatus string

const (
	PrizeCodeStatusActive   PrizeCodeStatus = "active"
	PrizeCodeStatusRedeemed PrizeCodeStatus = "redeemed"
	PrizeCodeStatusExpired  PrizeCodeStatus = "expired"
)

// EventType represents the type of an audit event.
type EventType string

const (
	EventTypeSessionCreated EventType = "session_created"
	EventTypeRoundPlayed    EventType = "round_played"
	EventTypeSessionWon     EventType = "session_won"
	EventTypeSessionLost    EventType = "session_lost"
	EventTypeSessionExpired EventType = "session_expired"
	EventTypePrizeIssued    EventType = "prize_issued"
	EventTypePrizeRedeemed  EventType = "prize_redeemed"
	EventTypePrizeExpired   EventType = "prize_expired"
)

// Role is the identity role resolved from a bearer token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)
