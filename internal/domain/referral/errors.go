package referral

import "errors"

var (
	// ErrInvalidCode is returned when the referral code resolves to no member
	ErrInvalidCode = errors.New("invalid referral code")

	// ErrAlreadyBound is returned on a second bind attempt for the same referee
	ErrAlreadyBound = errors.New("referee already bound to a referrer")

	// ErrSelfReferral is returned when a member submits their own code
	ErrSelfReferral = errors.New("cannot use own referral code")
)
