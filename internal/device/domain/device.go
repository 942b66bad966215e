package domain

import "strings"

// Attributes is the device attribute bag submitted by the client agent.
type Attributes struct {
	UserAgent           string  `json:"userAgent"`
	Platform            string  `json:"platform"`
	ScreenResolution    string  `json:"screenResolution"`
	Timezone            string  `json:"timezone"`
	Language            string  `json:"language,omitempty"`
	ColorDepth          int     `json:"colorDepth,omitempty"`
	HardwareConcurrency int     `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        float64 `json:"deviceMemory,omitempty"`
	MaxTouchPoints      int     `json:"maxTouchPoints,omitempty"`
	CanvasSignature     string  `json:"canvasSignature,omitempty"`
}

// MissingRequired returns the JSON names of required attributes that are blank.
func (a Attributes) MissingRequired() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"userAgent", a.UserAgent},
		{"platform", a.Platform},
		{"screenResolution", a.ScreenResolution},
		{"timezone", a.Timezone},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Identity is the three-signal device identity stored on a ticket.
// Strict identifies one agent on one device; Stable survives switching agents on the same
// device; NetworkAddress is a best-effort hint and may be empty.
type Identity struct {
	Strict         string
	Stable         string
	NetworkAddress string
}

// Matches reports whether any signal equals the corresponding signal of other.
// Empty values never match.
func (id Identity) Matches(other Identity) bool {
	return same(id.Strict, other.Strict) ||
		same(id.Stable, other.Stable) ||
		same(id.NetworkAddress, other.NetworkAddress)
}

// MatchedSignals names the signals shared with other, in strict, stable, network order.
func (id Identity) MatchedSignals(other Identity) []string {
	var out []string
	if same(id.Strict, other.Strict) {
		out = append(out, "strict")
	}
	if same(id.Stable, other.Stable) {
		out = append(out, "stable")
	}
	if same(id.NetworkAddress, other.NetworkAddress) {
		out = append(out, "network")
	}
	return out
}

func same(a, b string) bool {
	return a != "" && a == b
}
