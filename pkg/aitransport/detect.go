package aitransport

import "fmt"

// VendorKind names which concrete SDK a client belongs to.
type VendorKind string

const (
	VendorAnthropic VendorKind = "anthropic"
	VendorOpenAI    VendorKind = "openai"
)

// DetectVendor reports which vendor a transport was built for, by its
// concrete type — mirroring the original's type-signature dispatch since
// Go has no dynamic "is this client object shaped like X" check.
func DetectVendor(t Transport) (VendorKind, error) {
	switch t.(type) {
	case *AnthropicTransport:
		return VendorAnthropic, nil
	case *OpenAITransport:
		return VendorOpenAI, nil
	default:
		return "", fmt.Errorf("aitransport: unrecognized transport type %T", t)
	}
}
