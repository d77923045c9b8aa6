// Package session binds browser sessions to conversation transcripts.
package session

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"
)

const (
	// DefaultCookieName is the cookie carrying the encoded session.
	DefaultCookieName = "claudechat_session"
	// DefaultMaxAge matches the default transcript TTL.
	DefaultMaxAge = 24 * time.Hour
)

// Session is the per-browser state resolved once per request.
type Session struct {
	ConversationID string `json:"conversation_id"`

	modified bool
}

// Bind sets the conversation ID and marks the session for saving.
func (s *Session) Bind(conversationID string) {
	if s.ConversationID == conversationID {
		return
	}
	s.ConversationID = conversationID
	s.modified = true
}

// Modified reports whether the session needs to be written back.
func (s *Session) Modified() bool {
	return s.modified
}

// Codec loads and saves sessions in a signed cookie.
type Codec struct {
	sc     *securecookie.SecureCookie
	name   string
	maxAge time.Duration
	secure bool
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCookieName overrides the cookie name.
func WithCookieName(name string) CodecOption {
	return func(c *Codec) {
		c.name = name
	}
}

// WithMaxAge sets the cookie lifetime. Zero or less keeps the default.
func WithMaxAge(maxAge time.Duration) CodecOption {
	return func(c *Codec) {
		if maxAge > 0 {
			c.maxAge = maxAge
		}
	}
}

// WithSecure marks the cookie Secure.
func WithSecure(secure bool) CodecOption {
	return func(c *Codec) {
		c.secure = secure
	}
}

// NewCodec creates a cookie codec signed with secret.
// An empty secret gets a random key, so sessions do not survive a restart.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	hashKey := []byte(secret)
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil {
			return nil, errors.New("session: failed to generate random secret key")
		}
	}

	c := &Codec{
		name:   DefaultCookieName,
		maxAge: DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sc = securecookie.New(hashKey, nil).MaxAge(int(c.maxAge.Seconds()))
	return c, nil
}

// Load returns the session carried by the request.
// A missing, expired or tampered cookie yields an empty session.
func (c *Codec) Load(r *http.Request) *Session {
	s := &Session{}
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return s
	}
	if err := c.sc.Decode(c.name, cookie.Value, s); err != nil {
		return &Session{}
	}
	return s
}

// Save writes the session cookie when it was modified.
func (c *Codec) Save(w http.ResponseWriter, s *Session) error {
	if s == nil || !s.modified {
		return nil
	}
	encoded, err := c.sc.Encode(c.name, s)
	if err != nil {
		return errors.Wrap(err, "session: encode cookie")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.modified = false
	return nil
}
