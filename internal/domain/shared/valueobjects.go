// Package shared contains common domain types, errors and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// OsuUserID represents a unique osu! account identifier.
// This is the stable cross-tournament identity for a player.
type OsuUserID int64

// IsValid checks if the osu! user ID is valid (positive number).
func (id OsuUserID) IsValid() bool {
	return id > 0
}

// Int64 returns the underlying int64 value.
func (id OsuUserID) Int64() int64 {
	return int64(id)
}

// String returns the string representation.
func (id OsuUserID) String() string {
	return fmt.Sprintf("%d", id)
}

// NewOsuUserID creates a new OsuUserID with validation.
func NewOsuUserID(id int64) (OsuUserID, error) {
	if id <= 0 {
		return 0, ErrInvalidOsuUserID
	}
	return OsuUserID(id), nil
}

// Nickname represents an osu! username. Nicknames are a degraded fallback
// identity for history entries recorded before user IDs were stored.
type Nickname string

// IsValid checks that the nickname is non-empty after trimming.
func (n Nickname) IsValid() bool {
	return strings.TrimSpace(string(n)) != ""
}

// String returns the string representation.
func (n Nickname) String() string {
	return string(n)
}

// Normalize returns the case-folded form used for fallback identity joins.
func (n Nickname) Normalize() Nickname {
	return Nickname(strings.ToLower(strings.TrimSpace(string(n))))
}

// ═══════════════════════════════════════════════════════════════════════════
// Player key - two-tier identity resolution
// ═══════════════════════════════════════════════════════════════════════════

// PlayerKey is the resolved cross-tournament identity of a player.
// Exact user-id match is preferred; a case-insensitive nickname match is the
// fallback for entries recorded before user IDs were stored. Every fallback
// resolution is logged by the caller for audit.
type PlayerKey string

// ResolvePlayerKey builds a PlayerKey from whatever identity a record carries.
// Returns (key, usedFallback, error). The error is ErrUnresolvableIdentity
// when neither identity is usable; such entries are skipped, never fatal.
func ResolvePlayerKey(userID OsuUserID, nickname Nickname) (PlayerKey, bool, error) {
	if userID.IsValid() {
		return PlayerKey("id:" + userID.String()), false, nil
	}
	if nickname.IsValid() {
		return PlayerKey("nick:" + nickname.Normalize().String()), true, nil
	}
	return "", false, ErrUnresolvableIdentity
}

// IsFallback reports whether the key was resolved from a nickname.
func (k PlayerKey) IsFallback() bool {
	return strings.HasPrefix(string(k), "nick:")
}

// String returns the string representation.
func (k PlayerKey) String() string {
	return string(k)
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating and Points
// ═══════════════════════════════════════════════════════════════════════════

// PP represents the external game's skill-rating metric (performance points).
// Fractional: the osu! API reports PP with decimals.
type PP float64

// IsValid checks that PP is non-negative.
func (p PP) IsValid() bool {
	return p >= 0
}

// Float64 returns the underlying float64 value.
func (p PP) Float64() float64 {
	return float64(p)
}

// Points represents competition points derived from a rating gain.
// Invariant: never negative.
type Points int

// IsValid checks that the value respects the non-negativity invariant.
func (p Points) IsValid() bool {
	return p >= 0
}

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// Position represents a dense rank in a ranking list (1 = best).
type Position int

// IsValid checks that the position is positive.
func (p Position) IsValid() bool {
	return p > 0
}

// Int returns the underlying int value.
func (p Position) Int() int {
	return int(p)
}

// Better reports whether p is a better placement than other.
// Zero (unset) positions are never better.
func (p Position) Better(other Position) bool {
	if p <= 0 {
		return false
	}
	return other <= 0 || p < other
}
