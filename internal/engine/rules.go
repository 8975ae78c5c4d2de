/**
 * @description
 * This file defines the declarative access-rule set evaluated against a caller's
 * presented badge proofs. Rules are capability predicates, not identity checks:
 * possession of a badge of the named resource grants the capability.
 */

package engine

type ruleKind int

const (
	ruleAllowAll ruleKind = iota
	ruleRequireResource
	ruleAnyOf
)

// AccessRule is a boolean predicate over the caller's presented credentials.
type AccessRule struct {
	kind     ruleKind
	resource ResourceAddress
	rules    []AccessRule
}

// AllowAll permits every caller, authenticated or not.
func AllowAll() AccessRule {
	return AccessRule{kind: ruleAllowAll}
}

// RequireResource permits callers presenting a proof of holding the resource.
func RequireResource(addr ResourceAddress) AccessRule {
	return AccessRule{kind: ruleRequireResource, resource: addr}
}

// AnyOf permits callers satisfying at least one of the given rules.
func AnyOf(rules ...AccessRule) AccessRule {
	return AccessRule{kind: ruleAnyOf, rules: rules}
}

// Allows evaluates the rule against the caller's auth. A nil auth carries no
// credentials and only satisfies AllowAll.
func (r AccessRule) Allows(auth *Auth) bool {
	switch r.kind {
	case ruleAllowAll:
		return true
	case ruleRequireResource:
		return auth.HoldsResource(r.resource)
	case ruleAnyOf:
		for _, sub := range r.rules {
			if sub.Allows(auth) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Auth is the credential set a caller presents with a call: the transaction
// signer's public key and zero or more badge proofs.
type Auth struct {
	signerPublicKey string
	proofs          []*Proof
	system          bool
}

// NewAuth builds an auth context from a signer key and proofs.
func NewAuth(signerPublicKey string, proofs ...*Proof) *Auth {
	return &Auth{signerPublicKey: signerPublicKey, proofs: proofs}
}

// SystemAuth returns the component authority: the credential a component runs
// its own resource operations under. It satisfies every resource rule and must
// never cross the call boundary into caller-supplied credentials.
func SystemAuth() *Auth {
	return &Auth{system: true}
}

// SignerPublicKey returns the transaction signer's public key, or "" if unknown.
func (a *Auth) SignerPublicKey() string {
	if a == nil {
		return ""
	}
	return a.signerPublicKey
}

// HoldsResource reports whether any presented proof attests to the resource.
// Component authority holds every resource.
func (a *Auth) HoldsResource(addr ResourceAddress) bool {
	if a != nil && a.system {
		return true
	}
	return a.ProofOf(addr) != nil
}

// ProofOf returns the first presented proof of the given resource, or nil.
func (a *Auth) ProofOf(addr ResourceAddress) *Proof {
	if a == nil {
		return nil
	}
	for _, p := range a.proofs {
		if p != nil && p.resource == addr {
			return p
		}
	}
	return nil
}
