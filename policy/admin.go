// Package policy decides who may use the admin surface.
package policy

import (
	"strings"

	"storefront/models"
)

const DefaultAdminEmail = "admin@stylishhub.com"

// AdminPolicy grants admin rights to flagged users and to an email allow-list.
type AdminPolicy struct {
	emails map[string]struct{}
}

// NewAdminPolicy builds a policy from a list of admin emails. An empty list
// falls back to DefaultAdminEmail.
func NewAdminPolicy(emails ...string) *AdminPolicy {
	p := &AdminPolicy{emails: make(map[string]struct{})}
	for _, e := range emails {
		if e = normalize(e); e != "" {
			p.emails[e] = struct{}{}
		}
	}
	if len(p.emails) == 0 {
		p.emails[DefaultAdminEmail] = struct{}{}
	}
	return p
}

func (p *AdminPolicy) IsAdmin(u *models.User) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin || p.IsAdminEmail(u.Email)
}

func (p *AdminPolicy) IsAdminEmail(email string) bool {
	_, ok := p.emails[normalize(email)]
	return ok
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
