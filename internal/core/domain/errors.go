package domain

import "errors"

var (
	ErrInstanceNotFound = errors.New("channel instance not found")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrPolicyNotFound   = errors.New("community policy not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrChannelGone      = errors.New("underlying channel no longer exists")
	ErrOwnerImmutable   = errors.New("owner cannot be a permission target")
	ErrAlreadyOwner     = errors.New("member already owns this channel")
	ErrCreationInFlight = errors.New("creation already in flight for this member")
	ErrFeatureDisabled  = errors.New("ephemeral channels disabled for this community")
)
