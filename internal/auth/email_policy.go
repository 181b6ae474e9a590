package auth

import (
	"fmt"
	"strings"
)

// EmailPolicy decides which addresses may request a sign-in code.
// Accepted forms: "all", "domain:<domain>", "list:<a@x>,<b@y>".
type EmailPolicy struct {
	allowAll bool
	domain   string
	list     map[string]struct{}
}

func ParseEmailPolicy(raw string) (EmailPolicy, error) {
	policy := strings.TrimSpace(raw)
	switch {
	case policy == "" || policy == "all":
		return EmailPolicy{allowAll: true}, nil
	case strings.HasPrefix(policy, "domain:"):
		domain := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(policy, "domain:")))
		if domain == "" {
			return EmailPolicy{}, fmt.Errorf("email policy %q has no domain", raw)
		}
		return EmailPolicy{domain: domain}, nil
	case strings.HasPrefix(policy, "list:"):
		list := make(map[string]struct{})
		for _, e := range strings.Split(strings.TrimPrefix(policy, "list:"), ",") {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				list[e] = struct{}{}
			}
		}
		return EmailPolicy{list: list}, nil
	default:
		return EmailPolicy{}, fmt.Errorf("unsupported email policy %q", raw)
	}
}

func (p EmailPolicy) Allows(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if p.allowAll {
		return true
	}
	if p.domain != "" {
		return strings.HasSuffix(email, "@"+p.domain)
	}
	_, ok := p.list[email]
	return ok
}
