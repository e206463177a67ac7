package users

// SimpleConfig is a struct-backed Config for callers that do not have their
// own configuration layer.
type SimpleConfig struct {
	Tenant        string   `json:"tenant"`
	SigningKey    []byte   `json:"-"`
	SigningMethod string   `json:"signing_method"`
	Issuer        string   `json:"issuer"`
	Audience      []string `json:"audience"`
	CookieDomain  string   `json:"cookie_domain"`
	ContextKey    string   `json:"context_key"`
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetTenant() string        { return c.Tenant }
func (c *SimpleConfig) GetSigningKey() []byte    { return c.SigningKey }
func (c *SimpleConfig) GetSigningMethod() string { return c.SigningMethod }
func (c *SimpleConfig) GetIssuer() string        { return c.Issuer }
func (c *SimpleConfig) GetAudience() []string    { return c.Audience }
func (c *SimpleConfig) GetCookieDomain() string  { return c.CookieDomain }
func (c *SimpleConfig) GetContextKey() string    { return c.ContextKey }
