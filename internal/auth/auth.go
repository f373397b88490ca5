// Package auth applies configured credentials to outgoing crawl
// requests, for mirroring sites that sit behind a login or a shared
// secret header.
package auth

import (
	"fmt"
	"net/http"
)

// Type selects the authentication scheme.
type Type string

const (
	TypeNone   Type = ""
	TypeBasic  Type = "basic"
	TypeBearer Type = "bearer"
	TypeCookie Type = "cookie"
)

// Cookie is one preconfigured cookie attached to every request.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

// Credentials describes how crawl requests authenticate against the
// target site. The zero value sends requests unauthenticated; custom
// headers are applied regardless of the scheme.
type Credentials struct {
	Type     Type              `json:"type,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Token    string            `json:"token,omitempty"`
	Cookies  []Cookie          `json:"cookies,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Enabled reports whether the credentials would modify a request.
func (c *Credentials) Enabled() bool {
	if c == nil {
		return false
	}
	return c.Type != TypeNone || len(c.Headers) > 0
}

// Validate checks that the selected scheme has the fields it needs.
func (c *Credentials) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Type {
	case TypeNone:
		return nil
	case TypeBasic:
		if c.Username == "" {
			return fmt.Errorf("basic auth requires a username")
		}
	case TypeBearer:
		if c.Token == "" {
			return fmt.Errorf("bearer auth requires a token")
		}
	case TypeCookie:
		if len(c.Cookies) == 0 {
			return fmt.Errorf("cookie auth requires at least one cookie")
		}
	default:
		return fmt.Errorf("unknown auth type: %s", c.Type)
	}
	return nil
}

// Apply sets the scheme's headers and cookies on a request.
func (c *Credentials) Apply(req *http.Request) {
	if c == nil {
		return
	}
	switch c.Type {
	case TypeBasic:
		req.SetBasicAuth(c.Username, c.Password)
	case TypeBearer:
		req.Header.Set("Authorization", "Bearer "+c.Token)
	case TypeCookie:
		for _, cookie := range c.Cookies {
			path := cookie.Path
			if path == "" {
				path = "/"
			}
			req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value, Path: path})
		}
	}
	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}
}
