package oauth

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/parsascontentcorner/guilddash/internal/apperrors"
	"github.com/parsascontentcorner/guilddash/internal/models"
)

// handleWarnings lists the latest warnings of the guild, optionally only
// those of the member given by ?user_id=.
func (h *Handlers) handleWarnings(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *models.Session) {
	guildID := ps.ByName("guildId")

	userID := r.URL.Query().Get("user_id")
	if userID != "" && !models.IsSnowflake(userID) {
		h.writeError(w, r, apperrors.Validation("Invalid user ID"))
		return
	}

	warnings, err := h.activity.ListWarnings(r.Context(), guildID, userID, models.WarningListLimit)
	if err != nil {
		h.writeError(w, r, apperrors.Internal("Failed to load warnings", err).WithContext("guild_id", guildID))
		return
	}

	h.writeJSON(w, http.StatusOK, warnings)
}

func (h *Handlers) handleTickets(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *models.Session) {
	guildID := ps.ByName("guildId")

	tickets, err := h.activity.ListTickets(r.Context(), guildID, models.TicketListLimit)
	if err != nil {
		h.writeError(w, r, apperrors.Internal("Failed to load tickets", err).WithContext("guild_id", guildID))
		return
	}

	h.writeJSON(w, http.StatusOK, tickets)
}

func (h *Handlers) handleAnalytics(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ *models.Session) {
	guildID := ps.ByName("guildId")

	report, err := h.activity.AnalyticsReport(r.Context(), guildID, models.AnalyticsEventLimit)
	if err != nil {
		h.writeError(w, r, apperrors.Internal("Failed to load analytics", err).WithContext("guild_id", guildID))
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}
