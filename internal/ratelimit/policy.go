package ratelimit

import "time"

// Class identifies a group of endpoints sharing one rate budget.
type Class string

const (
	ClassAuthLogin     Class = "auth_login"
	ClassAuthRegister  Class = "auth_register"
	ClassPasswordReset Class = "password_reset"
	ClassUpload        Class = "upload"
	ClassWrite         Class = "write"
	ClassRead          Class = "read"
)

// Policy is one fixed-window budget.
type Policy struct {
	Max    int
	Window time.Duration
}

// Policies resolves a Policy per endpoint class, distinguishing
// authenticated callers (keyed by user id) from anonymous ones (keyed
// by IP). Authenticated callers get the larger budgets.
type Policies struct {
	Anonymous     map[Class]Policy
	Authenticated map[Class]Policy
	Fallback      Policy
}

// Lookup returns the policy for class. Unknown classes fall back to a
// conservative write-tier budget.
func (p Policies) Lookup(class Class, authenticated bool) Policy {
	table := p.Anonymous
	if authenticated {
		table = p.Authenticated
	}
	if pol, ok := table[class]; ok {
		return pol
	}
	return p.Fallback
}

// ProductionPolicies returns the limits enforced in production.
func ProductionPolicies() Policies {
	return Policies{
		Anonymous: map[Class]Policy{
			ClassAuthLogin:     {Max: 5, Window: 15 * time.Minute},
			ClassAuthRegister:  {Max: 5, Window: 15 * time.Minute},
			ClassPasswordReset: {Max: 3, Window: time.Hour},
			ClassUpload:        {Max: 10, Window: time.Hour},
			ClassWrite:         {Max: 50, Window: time.Hour},
			ClassRead:          {Max: 200, Window: time.Hour},
		},
		Authenticated: map[Class]Policy{
			ClassAuthLogin:     {Max: 10, Window: 15 * time.Minute},
			ClassAuthRegister:  {Max: 10, Window: 15 * time.Minute},
			ClassPasswordReset: {Max: 5, Window: time.Hour},
			ClassUpload:        {Max: 25, Window: time.Hour},
			ClassWrite:         {Max: 200, Window: time.Hour},
			ClassRead:          {Max: 1000, Window: time.Hour},
		},
		Fallback: Policy{Max: 50, Window: time.Hour},
	}
}

// DevelopmentPolicies returns the relaxed limits used outside
// production so local testing is not throttled.
func DevelopmentPolicies() Policies {
	return Policies{
		Anonymous: map[Class]Policy{
			ClassAuthLogin:     {Max: 10, Window: 15 * time.Minute},
			ClassAuthRegister:  {Max: 10, Window: 15 * time.Minute},
			ClassPasswordReset: {Max: 10, Window: time.Hour},
			ClassUpload:        {Max: 25, Window: time.Hour},
			ClassWrite:         {Max: 200, Window: time.Hour},
			ClassRead:          {Max: 1000, Window: time.Hour},
		},
		Authenticated: map[Class]Policy{
			ClassAuthLogin:     {Max: 10, Window: 15 * time.Minute},
			ClassAuthRegister:  {Max: 10, Window: 15 * time.Minute},
			ClassPasswordReset: {Max: 10, Window: time.Hour},
			ClassUpload:        {Max: 50, Window: time.Hour},
			ClassWrite:         {Max: 500, Window: time.Hour},
			ClassRead:          {Max: 2000, Window: time.Hour},
		},
		Fallback: Policy{Max: 200, Window: time.Hour},
	}
}

// PoliciesForEnv maps an environment name to its policy table.
func PoliciesForEnv(env string) Policies {
	if env == "production" {
		return ProductionPolicies()
	}
	return DevelopmentPolicies()
}
