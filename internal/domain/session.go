package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionRecord is one persisted browser session.
type SessionRecord struct {
	ID        string
	UserID    uuid.UUID // uuid.Nil when anonymous
	Lang      string
	Data      string
	ExpiresAt time.Time
}

// Session value keys shared by the HTTP layer and the session store.
const (
	SessionKeyUserID = "user_id"
	SessionKeyLang   = "lang"
)
