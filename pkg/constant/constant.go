package constant

import "time"

const (
	DefaultAccessTokenTTL       = 30 * time.Minute
	DefaultRefreshTokenTTL      = 7 * 24 * time.Hour
	DefaultResetTokenTTL        = 24 * time.Hour
	DefaultVerificationTokenTTL = 7 * 24 * time.Hour

	// OpaqueTokenBytes is the entropy of a stateful token value before
	// base64url encoding.
	OpaqueTokenBytes = 32

	RevokeReasonLogout      = "user logout"
	RevokeReasonRotated     = "rotated"
	RevokeReasonForcedAdmin = "forced by admin"
)
