package policy

import "strings"

// SenderPolicy is the authoritative allow-list gate for newsletter senders.
// The upstream search query is coarse and can match quoted text, so every
// fetched message passes through Accept before it is processed.
type SenderPolicy struct {
	allowed []string
}

// New builds a policy from allow-listed addresses. Blank entries are ignored.
func New(allowed []string) *SenderPolicy {
	p := &SenderPolicy{}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			p.allowed = append(p.allowed, a)
		}
	}
	return p
}

// Accept reports whether sender contains an allow-listed address,
// compared case-insensitively. An empty allow-list accepts nothing.
func (p *SenderPolicy) Accept(sender string) bool {
	sender = strings.ToLower(sender)
	for _, a := range p.allowed {
		if strings.Contains(sender, a) {
			return true
		}
	}
	return false
}

// Allowed returns the normalized allow-list.
func (p *SenderPolicy) Allowed() []string {
	return append([]string(nil), p.allowed...)
}
