package oauth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/guilddash/internal/apperrors"
	"github.com/parsascontentcorner/guilddash/internal/metrics"
	"github.com/parsascontentcorner/guilddash/internal/models"
	"github.com/parsascontentcorner/guilddash/internal/session"
	"github.com/parsascontentcorner/guilddash/pkg/logger"
)

// Messages of the 401 responses.
const (
	MsgMissingAuthorization = "Missing or invalid Authorization header"
	MsgInvalidSession       = "Invalid or expired session"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// requireSession resolves the bearer token to a live session before calling next.
func (h *Handlers) requireSession(next sessionHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token, ok := BearerToken(r)
		if !ok {
			h.writeError(w, r, apperrors.Unauthorized(MsgMissingAuthorization))
			return
		}

		sess, err := h.sessions.Get(r.Context(), token)
		if session.IsInvalid(err) {
			h.writeError(w, r, apperrors.Unauthorized(MsgInvalidSession))
			return
		}
		if err != nil {
			h.writeError(w, r, apperrors.Internal("Failed to load session", err))
			return
		}

		ctx := logger.WithContext(r.Context(), logger.FromContext(r.Context(), h.logger).With(zap.String("discord_id", sess.User.ID)))
		next(w, r.WithContext(ctx), ps, sess)
	}
}

// requireGuildAccess rejects guild IDs that are malformed or that the session
// may not manage.
func (h *Handlers) requireGuildAccess(next sessionHandle) sessionHandle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, sess *models.Session) {
		guildID := ps.ByName("guildId")
		if !models.IsSnowflake(guildID) {
			h.writeError(w, r, apperrors.Validation("Invalid guild ID"))
			return
		}

		if _, err := h.guilds.ManageableGuild(r.Context(), sess, guildID); err != nil {
			h.writeError(w, r, err)
			return
		}

		next(w, r, ps, sess)
	}
}

// instrument records request count and latency under the route pattern, so
// path parameters do not explode label cardinality.
func (h *Handlers) instrument(route string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r, ps)

		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// writeError sends the JSON error body for err. Client errors log at warn, the rest at error.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.As(err)
	status := appErr.HTTPStatus()

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("type", string(appErr.Type)),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}
	for k, v := range appErr.Context {
		fields = append(fields, zap.Any(k, v))
	}

	log := logger.FromContext(r.Context(), h.logger)
	if appErr.IsClientError() {
		log.Warn(appErr.Message, fields...)
	} else {
		log.Error(appErr.Message, fields...)
	}

	h.writeJSON(w, status, appErr.ToResponse())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
