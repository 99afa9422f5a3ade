package dto

// AccessAllowResponse carries the playback locator on an allow decision.
type AccessAllowResponse struct {
	Allow   bool   `json:"allow"`
	Locator string `json:"locator"`
}

// AccessDenyResponse carries the single reason code on a deny decision.
type AccessDenyResponse struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}
