package http

import (
	"context"
	"net/http"
	"strings"

	"famfin/internal/log"
	"famfin/internal/services"
	"famfin/internal/session"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// authed resolves the bearer token into a session and passes it explicitly
// to h. The session is also put on the request context for logging.
func (s *Server) authed(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, services.ErrNotAuthenticated)
			return
		}
		sess, err := s.issuer.Parse(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := session.WithSession(r.Context(), sess)
		logger := log.FromContext(ctx).With(log.FieldFamilyID, sess.FamilyID, log.FieldUserID, sess.UserID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		h(w, r.WithContext(ctx), sess)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
