package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ostlive/bookingpipe/internal/models"
)

var errNoEngine = errors.New("api server requires a booking engine")

// validationFailed reports whether err is a client-side input problem.
func validationFailed(err error) bool {
	return errors.Is(err, models.ErrEmptyUserID) ||
		errors.Is(err, models.ErrEmptyConversationID) ||
		errors.Is(err, models.ErrEmptyCardToken)
}

func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.turnHandler: processing turn request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.turnHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.engine.HandleTurn(r.Context(), req)
	if err != nil {
		if validationFailed(err) {
			slog.Warn("Server.turnHandler: validation failed", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.turnHandler: turn failed", "error", err, "userID", req.UserID, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process turn"))
		return
	}

	slog.Info("Server.turnHandler: turn processed", "userID", req.UserID, "conversationID", req.ConversationID, "done", result.Done)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// receiveTokenHandler is the payment page's webhook. It deposits the payment
// token and synchronously drives the checkout pipeline; the response tells
// the payment page whether checkout finished, is pending, or was refused.
func (s *Server) receiveTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.receiveTokenHandler: processing token", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.receiveTokenHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.TokenWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.receiveTokenHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.engine.CompleteWithToken(r.Context(), req)
	if err != nil {
		if validationFailed(err) {
			slog.Warn("Server.receiveTokenHandler: validation failed", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.receiveTokenHandler: completion failed", "error", err, "userID", req.UserID, "conversationID", req.ConversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process payment token"))
		return
	}

	slog.Info("Server.receiveTokenHandler: token processed", "userID", req.UserID, "conversationID", req.ConversationID, "status", result.Status)
	switch result.Status {
	case models.CompletionCheckoutComplete:
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Checkout completed", result))
	case models.CompletionTokenStored:
		writeJSONResponse(w, http.StatusAccepted, models.SuccessWithMessage("Token stored, checkout pending", result))
	default:
		writeJSONResponse(w, http.StatusConflict, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(result.PipelineError).
			WithResult(result).
			Build())
	}
}

func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.restartHandler: processing restart", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.restartHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var key models.CorrelationKey
	if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
		slog.Warn("Server.restartHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if err := s.engine.Restart(r.Context(), key); err != nil {
		if validationFailed(err) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.restartHandler: restart failed", "error", err, "key", key.String())
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to restart conversation"))
		return
	}

	slog.Info("Server.restartHandler: conversation restarted", "key", key.String())
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation restarted", nil))
}

func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.progressHandler: processing progress lookup", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.progressHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := models.CorrelationKey{
		UserID:         r.URL.Query().Get("user_id"),
		ConversationID: r.URL.Query().Get("conversation_id"),
	}

	report, err := s.engine.ProgressReport(r.Context(), key)
	if err != nil {
		if validationFailed(err) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.progressHandler: lookup failed", "error", err, "key", key.String())
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up progress"))
		return
	}
	if report == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No booking in progress for this conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
