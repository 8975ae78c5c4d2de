/**
 * @description
 * This file defines the identity records carried by user badges: the externally
 * assigned UserID, the immutable UserData written at badge mint time, and the
 * admin-mutable UserMutableData (blacklist flag and wrapped-exchange limit).
 *
 * @notes
 * - Exactly one live badge exists per UserID; the badge's non-fungible id is the
 *   zero-padded rendering of the UserID, so a duplicate mint is rejected by the
 *   badge resource itself.
 * - Blacklisting relocates the badge, it never destroys it: UserData survives a
 *   blacklist/unblacklist round trip untouched.
 */

package domain

import (
	"fmt"
	"strconv"
)

// UserID is a stable, externally assigned 64-bit user identifier.
type UserID uint64

// ParseUserID parses the decimal rendering of a user id.
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return UserID(v), nil
}

// String renders the id as a fixed-width, zero-padded 19-digit decimal string.
// This is also the non-fungible id of the user's badge, so the width is part of
// the external format and must not change.
func (id UserID) String() string {
	return fmt.Sprintf("%019d", uint64(id))
}

// UserData is the immutable identity record minted into a user badge.
type UserData struct {
	UserID         UserID `json:"user_id"`
	UserAccount    string `json:"user_account"`
	CreatedAtEpoch uint64 `json:"created_at_epoch"`
}

// UserMutableData is the admin-mutable portion of a user badge.
type UserMutableData struct {
	IsBlacklisted        bool   `json:"is_blacklisted"`
	WrappedExchangeLimit Amount `json:"wrapped_exchange_limit"`
}

// SetWrappedExchangeLimit replaces the remaining exchange limit, preserving the
// blacklist flag.
func (d *UserMutableData) SetWrappedExchangeLimit(limit Amount) {
	d.WrappedExchangeLimit = limit
}
