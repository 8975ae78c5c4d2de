/**
 * @description
 * This file defines the issuer's declarative per-method access policy: a mapping
 * from operation name to an access rule evaluated against the caller's presented
 * badge proofs, with a default fallback rule. This replaces inheritance-based
 * access control; every dispatch path consults the same table.
 */

package app

import (
	"errors"
	"fmt"

	"github.com/tari-project/stable-coin/internal/engine"
)

// ErrUnauthorized is returned when the caller's credentials do not satisfy the
// access rule for the requested method.
var ErrUnauthorized = errors.New("caller is not authorized")

// MethodPolicy is a per-method access-rule table with a default fallback.
type MethodPolicy struct {
	rules    map[string]engine.AccessRule
	fallback engine.AccessRule
}

// NewMethodPolicy builds a policy with the given named exceptions and fallback.
func NewMethodPolicy(rules map[string]engine.AccessRule, fallback engine.AccessRule) *MethodPolicy {
	return &MethodPolicy{rules: rules, fallback: fallback}
}

// RuleFor returns the rule governing the named method.
func (p *MethodPolicy) RuleFor(method string) engine.AccessRule {
	if rule, ok := p.rules[method]; ok {
		return rule
	}
	return p.fallback
}

// Authorize fails unless the caller satisfies the method's rule.
func (p *MethodPolicy) Authorize(method string, auth *engine.Auth) error {
	if !p.RuleFor(method).Allows(auth) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, method)
	}
	return nil
}
