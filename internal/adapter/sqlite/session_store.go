package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/hanzzx311/skyport/internal/domain"
	"github.com/jonboulle/clockwork"
)

// defaultSessionTTL applies to browser-session cookies (MaxAge == 0).
const defaultSessionTTL = 24 * time.Hour

// SessionStore is a gorilla/sessions Store that keeps session values in SQLite
// and only a signed session ID in the cookie.
type SessionStore struct {
	db      *sql.DB
	clock   clockwork.Clock
	codecs  []securecookie.Codec
	Options *sessions.Options
}

func NewSessionStore(db *sql.DB, clock clockwork.Clock, keyPairs ...[]byte) *SessionStore {
	s := &SessionStore{
		db:     db,
		clock:  clock,
		codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:   "/",
			MaxAge: 86400 * 30,
		},
	}
	s.MaxAge(s.Options.MaxAge)
	return s
}

// MaxAge sets the cookie and record lifetime in seconds.
func (s *SessionStore) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, c := range s.codecs {
		if codec, ok := c.(*securecookie.SecureCookie); ok {
			codec.MaxAge(age)
		}
	}
}

func (s *SessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the stored session named by the request cookie, or a fresh one.
// Tampered, unknown and expired IDs silently yield a fresh session.
func (s *SessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.codecs...); err != nil {
		return session, nil
	}

	found, err := s.load(r.Context(), id, session)
	if err != nil {
		return session, err
	}
	if found {
		session.ID = id
		session.IsNew = false
	}
	return session, nil
}

// Save persists the session and writes the ID cookie. A negative MaxAge
// deletes the record and expires the cookie.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()

	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.Delete(ctx, session.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	if err := s.save(ctx, session); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Record returns the stored record for id, ignoring expiry.
func (s *SessionStore) Record(ctx context.Context, id string) (*domain.SessionRecord, error) {
	var (
		rec       domain.SessionRecord
		userID    string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data, user_id, lang, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Data, &userID, &rec.Lang, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}

	if userID != "" {
		if rec.UserID, err = uuid.Parse(userID); err != nil {
			return nil, fmt.Errorf("corrupt session user id %q: %w", userID, err)
		}
	}
	rec.ExpiresAt = time.Unix(expiresAt, 0)
	return &rec, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every record whose expiry has passed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.clock.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// StartCleanup sweeps expired sessions every interval until the returned
// stop function is called.
func (s *SessionStore) StartCleanup(interval time.Duration) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				removed, err := s.DeleteExpired(context.Background())
				if err != nil {
					slog.Warn("Session cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Debug("Removed expired sessions", "count", removed)
				}

			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

func (s *SessionStore) load(ctx context.Context, id string, session *sessions.Session) (bool, error) {
	var (
		data      string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT data, expires_at FROM sessions WHERE id = ?`, id).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}

	if !s.clock.Now().Before(time.Unix(expiresAt, 0)) {
		return false, nil
	}

	if err := securecookie.DecodeMulti(session.Name(), data, &session.Values, s.codecs...); err != nil {
		slog.Warn("Discarding undecodable session", "error", err)
		return false, nil
	}
	return true, nil
}

func (s *SessionStore) save(ctx context.Context, session *sessions.Session) error {
	data, err := securecookie.EncodeMulti(session.Name(), session.Values, s.codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session values: %w", err)
	}

	ttl := defaultSessionTTL
	if session.Options.MaxAge > 0 {
		ttl = time.Duration(session.Options.MaxAge) * time.Second
	}
	now := s.clock.Now()

	userID, _ := session.Values[domain.SessionKeyUserID].(string)
	lang, _ := session.Values[domain.SessionKeyLang].(string)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, user_id, lang, expires_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			user_id = excluded.user_id,
			lang = excluded.lang,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		session.ID, data, userID, lang, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
