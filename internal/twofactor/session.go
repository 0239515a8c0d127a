package twofactor

import (
	"encoding/gob"
	"time"
)

const (
	SessionKeySetup    = "2fa_setup"
	SessionKeyVerified = "2fa_verified"
)

func init() {
	gob.Register(PendingEnrollment{})
}

// SessionStore is the per-session key/value bag the enrollment flow lives in.
type SessionStore interface {
	Get(key string) any
	Set(key string, val any)
	Delete(key string)
}

// PendingEnrollment is an enrollment that has been initiated but not yet
// confirmed with a code.
type PendingEnrollment struct {
	Secret    string
	FactorID  string
	CreatedAt time.Time
}

func (p *PendingEnrollment) ExpiresAt() time.Time {
	return p.CreatedAt.Add(setupTTL)
}

func getPendingEnrollment(sess SessionStore) (*PendingEnrollment, bool) {
	switch v := sess.Get(SessionKeySetup).(type) {
	case PendingEnrollment:
		return &v, true
	case *PendingEnrollment:
		if v != nil {
			return v, true
		}
	}
	return nil, false
}

// IsSessionVerified reports whether the session holds a successful second
// factor verification.
func IsSessionVerified(sess SessionStore) bool {
	if sess == nil {
		return false
	}
	verified, _ := sess.Get(SessionKeyVerified).(bool)
	return verified
}
