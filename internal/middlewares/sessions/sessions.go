package sessions

import (
	"crypto/rand"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

const (
	sessionContextKey = "session"
	sessionDataKey    = "data"
)

func init() {
	gob.Register(SessionData{})
}

type SessionData struct {
	UserID    uint      // user id
	IP        string    // client ip address at login
	LoginTime time.Time // last login time
	LastSeen  time.Time // last request time
}

func (s *SessionData) IsLoggedIn() bool {
	return s.UserID != 0
}

// Session is the fiber session of the request together with its login data.
// Other values, such as two-factor state, live in the embedded session under
// their own keys.
type Session struct {
	*session.Session
	SessionData
}

func (s *Session) Save(data ...SessionData) {
	if len(data) > 0 {
		s.SessionData = data[0]
	}
	s.Set(sessionDataKey, s.SessionData)
}

// Reset rotates the session id and drops every stored value.
func (s *Session) Reset(data ...SessionData) error {
	if err := s.Session.Reset(); err != nil {
		return err
	}
	s.SessionData = SessionData{}
	if len(data) > 0 {
		s.SessionData = data[0]
	}
	s.Set(sessionDataKey, s.SessionData)
	return nil
}

func (s *Session) Destroy() error {
	s.SessionData = SessionData{}
	return s.Session.Destroy()
}

func newSession(sess *session.Session) *Session {
	data, _ := sess.Get(sessionDataKey).(SessionData)
	return &Session{
		Session:     sess,
		SessionData: data,
	}
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("Could not generate session id", "error", err)
		return ""
	}
	return hex.EncodeToString(b)
}

func Get(ctx *fiber.Ctx) *Session {
	sess, _ := ctx.Locals(sessionContextKey).(*Session)
	return sess
}

func Destroy(ctx *fiber.Ctx) error {
	return Get(ctx).Destroy()
}

func Reset(ctx *fiber.Ctx, data SessionData) error {
	return Get(ctx).Reset(data)
}

type Config struct {
	Storage        fiber.Storage
	SessionMaxAge  time.Duration
	CookieSecure   bool
	CookieHttpOnly bool
	CookieName     string
	KeyPrefix      string
}

type prefixedStorage struct {
	fiber.Storage
	prefix string
}

func (p *prefixedStorage) Get(key string) ([]byte, error) {
	return p.Storage.Get(p.prefix + key)
}

func (p *prefixedStorage) Set(key string, val []byte, exp time.Duration) error {
	return p.Storage.Set(p.prefix+key, val, exp)
}

func (p *prefixedStorage) Delete(key string) error {
	return p.Storage.Delete(p.prefix + key)
}

func New(config Config) fiber.Handler {
	storage := config.Storage
	if storage != nil && config.KeyPrefix != "" {
		storage = &prefixedStorage{Storage: storage, prefix: config.KeyPrefix}
	}
	store := session.New(session.Config{
		Storage:        storage,
		Expiration:     config.SessionMaxAge,
		CookieSecure:   config.CookieSecure,
		CookieHTTPOnly: config.CookieHttpOnly,
		CookieSameSite: "Lax",
		KeyLookup:      fmt.Sprintf("cookie:%s", config.CookieName),
		KeyGenerator:   generateSessionID,
	})

	return func(ctx *fiber.Ctx) error {
		sess, err := store.Get(ctx)
		if err != nil {
			return err
		}

		session := newSession(sess)
		ctx.Locals(sessionContextKey, session)
		// error responses may still carry session changes
		nextErr := ctx.Next()

		if len(session.Keys()) > 0 {
			if data := session.SessionData; data.IsLoggedIn() {
				data.LastSeen = time.Now()
				sess.Set(sessionDataKey, data)
			}
			if err := sess.Save(); err != nil {
				return err
			}
		}
		return nextErr
	}
}
