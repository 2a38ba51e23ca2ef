package rate

import (
	"errors"
	"fmt"
	"time"
)

// Scope names the form a policy protects.
type Scope string

const (
	ScopeLogin    Scope = "login"
	ScopeRegister Scope = "register"
)

// Dimension names one independently counted request attribute.
type Dimension string

const (
	DimensionIP     Dimension = "ip"
	DimensionIPUA   Dimension = "ip_ua"
	DimensionCookie Dimension = "cookie"
)

var dimensions = [...]Dimension{DimensionIP, DimensionIPUA, DimensionCookie}

// Policy is a ceiling of Limit attempts per Window. A zero Limit disables
// the dimension.
type Policy struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// ScopePolicy holds the three dimension policies for one scope.
type ScopePolicy struct {
	IP     Policy `yaml:"ip"`
	IPUA   Policy `yaml:"ip_ua"`
	Cookie Policy `yaml:"cookie"`
}

func (p ScopePolicy) get(d Dimension) Policy {
	switch d {
	case DimensionIP:
		return p.IP
	case DimensionIPUA:
		return p.IPUA
	default:
		return p.Cookie
	}
}

// Config defines a public type used by sessionauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Scopes map[Scope]ScopePolicy

	// RequireCookie treats a missing or forged limiter cookie as an
	// exceeded cookie dimension.
	RequireCookie bool
	CookieSecret  []byte
}

// DefaultLoginPolicy returns the login form ceilings.
func DefaultLoginPolicy() ScopePolicy {
	return ScopePolicy{
		IP:     Policy{Limit: 100, Window: time.Hour},
		IPUA:   Policy{Limit: 10, Window: time.Minute},
		Cookie: Policy{Limit: 5, Window: time.Minute},
	}
}

// DefaultRegisterPolicy returns the register form ceilings.
func DefaultRegisterPolicy() ScopePolicy {
	return ScopePolicy{
		IP:     Policy{Limit: 20, Window: time.Hour},
		IPUA:   Policy{Limit: 5, Window: time.Minute},
		Cookie: Policy{Limit: 3, Window: time.Minute},
	}
}

// DefaultConfig returns both scopes with RequireCookie enabled. The caller
// must still supply CookieSecret.
func DefaultConfig() Config {
	return Config{
		Scopes: map[Scope]ScopePolicy{
			ScopeLogin:    DefaultLoginPolicy(),
			ScopeRegister: DefaultRegisterPolicy(),
		},
		RequireCookie: true,
	}
}

// Validate reports the first misconfiguration found.
func (c Config) Validate() error {
	if len(c.Scopes) == 0 {
		return errors.New("rate: at least one scope policy is required")
	}
	for scope, sp := range c.Scopes {
		for _, d := range dimensions {
			p := sp.get(d)
			if p.Limit < 0 {
				return fmt.Errorf("rate: %s/%s limit must not be negative", scope, d)
			}
			if p.Limit > 0 && p.Window <= 0 {
				return fmt.Errorf("rate: %s/%s window must be positive", scope, d)
			}
		}
	}
	if c.RequireCookie && len(c.CookieSecret) < 16 {
		return errors.New("rate: cookie secret must be at least 16 bytes when cookies are required")
	}
	return nil
}
