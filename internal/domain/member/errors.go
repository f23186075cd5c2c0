package member

import "errors"

var (
	// ErrNotFound is returned when no member matches the lookup
	ErrNotFound = errors.New("member not found")

	// ErrDuplicateIdentity is returned when the member id is already registered
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrDuplicatePhone is returned when the phone number is already in use
	ErrDuplicatePhone = errors.New("phone already in use")

	// ErrDuplicateLoginName is returned when the login name is taken
	ErrDuplicateLoginName = errors.New("login name already in use")

	// ErrDuplicateReferralCode signals a referral code collision on insert
	ErrDuplicateReferralCode = errors.New("referral code collision")

	// ErrCodeAllocation is returned when referral code generation keeps colliding
	ErrCodeAllocation = errors.New("could not allocate a unique referral code")

	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid login name or password")

	ErrInvalidStatus = errors.New("invalid account status")
)
