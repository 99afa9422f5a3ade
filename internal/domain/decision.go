package domain

// DenyReason is the single externally visible reason attached to a denial.
type DenyReason string

const (
	DenyUnauthenticated    DenyReason = "UNAUTHENTICATED"
	DenyContentUnavailable DenyReason = "CONTENT_UNAVAILABLE"
	DenyNoSubscription     DenyReason = "NO_SUBSCRIPTION"
	DenyEntitlementExpired DenyReason = "ENTITLEMENT_EXPIRED"
	DenyOutsideWindow      DenyReason = "OUTSIDE_WINDOW"
	DenyOriginUnavailable  DenyReason = "ORIGIN_UNAVAILABLE"
)

// AccessDecision is derived per request and never stored.
type AccessDecision struct {
	Allow bool
	// Locator is set only when Allow is true.
	Locator string
	// Reason is set only when Allow is false.
	Reason DenyReason
}

// Allowed builds an allow decision carrying the playback locator.
func Allowed(locator string) AccessDecision {
	return AccessDecision{Allow: true, Locator: locator}
}

// Denied builds a deny decision with a single reason code.
func Denied(reason DenyReason) AccessDecision {
	return AccessDecision{Allow: false, Reason: reason}
}
