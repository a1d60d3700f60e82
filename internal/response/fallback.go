package response

import "strings"

// Canned replies used when the generative backend is disabled or fails.
const (
	FallbackPasswordReset = "I have initiated a password reset for you. Please check your email for a secure link from our security team."
	FallbackPricing       = "Pricing inquiries are handled by our account team. I have escalated this ticket, and a specialist will contact you with a quote."
	FallbackTeam          = "To add team members, navigate to the 'Team' tab in your dashboard and click 'Invite'. I've attached our guide to this ticket."
	FallbackGeneric       = "Thank you for contacting support. I have created a support ticket for your request, and our technical team will review it shortly."
)

// FallbackText picks a canned reply by keyword. The first matching rule wins.
func FallbackText(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "reset") || strings.Contains(msg, "password"):
		return FallbackPasswordReset
	case strings.Contains(msg, "pricing") || strings.Contains(msg, "cost"):
		return FallbackPricing
	case strings.Contains(msg, "team") || strings.Contains(msg, "member"):
		return FallbackTeam
	default:
		return FallbackGeneric
	}
}
