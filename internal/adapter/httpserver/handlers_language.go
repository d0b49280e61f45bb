package httpserver

import (
	"fmt"
	"net/http"

	"github.com/hanzzx311/skyport/internal/domain"
	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

type languageResponse struct {
	Success bool `json:"success"`
}

// handleSetLanguage switches the caller's language. Unknown or missing codes
// answer {"success": false} and change nothing.
func (s *Server) handleSetLanguage(c echo.Context) error {
	lang := c.QueryParam("lang")
	if !s.languages.Has(lang) {
		s.countLanguageChange("rejected")
		return writeLanguageResponse(c, false)
	}

	if user := currentUser(c); user != nil {
		if err := s.app.SetUserLanguage(c.Request().Context(), user.ID, lang); err != nil {
			return apperrors.InternalError("failed to store language preference", err).
				WithContext("lang", lang)
		}
	}

	if session := currentSession(c); session != nil {
		session.Values[domain.SessionKeyLang] = lang
	}

	c.SetCookie(&http.Cookie{
		Name:     langCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   langCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	s.countLanguageChange("accepted")
	return writeLanguageResponse(c, true)
}

func writeLanguageResponse(c echo.Context, success bool) error {
	if err := c.JSON(http.StatusOK, languageResponse{Success: success}); err != nil {
		return fmt.Errorf("failed to write language response: %w", err)
	}
	return nil
}
