package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gymbook/internal/config"
	"gymbook/internal/domain"
	"gymbook/internal/export"
	"gymbook/internal/metrics"
	"gymbook/internal/models"
	"gymbook/internal/otp"
	"gymbook/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer is the thin JSON boundary over the lifecycle engine. It only
// decodes requests, trusts the authenticated user id it is handed and maps
// error kinds to status codes.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings *service.BookingService
	checkin  *service.CheckInService
	ratings  *service.RatingService
	otp      *otp.Service
	repo     domain.Repository
	exporter *export.Exporter
	clock    domain.Clock
	grace    time.Duration
	logger   *zerolog.Logger
	server   *http.Server
	auth     *HTTPAuth
}

type Deps struct {
	Bookings *service.BookingService
	CheckIn  *service.CheckInService
	Ratings  *service.RatingService
	OTP      *otp.Service
	Repo     domain.Repository
	Exporter *export.Exporter
	Clock    domain.Clock
	Grace    time.Duration
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: deps.Bookings,
		checkin:  deps.CheckIn,
		ratings:  deps.Ratings,
		otp:      deps.OTP,
		repo:     deps.Repo,
		exporter: deps.Exporter,
		clock:    deps.Clock,
		grace:    deps.Grace,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingAction)
	mux.HandleFunc("/api/v1/checkin", srv.handleCheckIn)
	mux.HandleFunc("/api/v1/checkin/verify", srv.handleVerify)
	mux.HandleFunc("/api/v1/ratings", srv.handleRatings)
	mux.HandleFunc("/api/v1/otp/request", srv.handleOTPRequest)
	mux.HandleFunc("/api/v1/otp/validate", srv.handleOTPValidate)
	mux.HandleFunc("/api/v1/notifications/", srv.handleNotificationAction)
	mux.HandleFunc("/api/v1/sessions", srv.handleSessions)
	mux.HandleFunc("/api/v1/admin/sweep", srv.handleSweep)
	mux.HandleFunc("/api/v1/admin/export", srv.handleExport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")
	switch r.Method {
	case http.MethodPost:
		var req struct {
			UserID    int64 `json:"user_id"`
			SessionID int64 `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.UserID == 0 || req.SessionID == 0 {
			writeError(w, http.StatusBadRequest, "user_id and session_id are required")
			return
		}

		booking, err := s.bookings.Create(r.Context(), req.UserID, req.SessionID)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, booking)

	case http.MethodGet:
		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil || userID == 0 {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		active, err := s.bookings.ListActiveForUser(r.Context(), userID)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": active})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleBookingAction serves /api/v1/bookings/{id}/cancel.
func (s *HTTPServer) handleBookingAction(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_action")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "cancel" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	bookingID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := s.bookings.Cancel(r.Context(), bookingID, req.UserID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *HTTPServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkin_verify")
	s.serveCheckIn(w, r, s.checkin.Verify)
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("checkin")
	s.serveCheckIn(w, r, s.checkin.CheckIn)
}

func (s *HTTPServer) serveCheckIn(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64) (*models.Booking, error)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID    int64 `json:"user_id"`
		SessionID int64 `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == 0 || req.SessionID == 0 {
		writeError(w, http.StatusBadRequest, "user_id and session_id are required")
		return
	}

	booking, err := op(r.Context(), req.UserID, req.SessionID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRatings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ratings")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID    int64  `json:"user_id"`
		BookingID int64  `json:"booking_id"`
		Score     int    `json:"score"`
		Comment   string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == 0 || req.BookingID == 0 {
		writeError(w, http.StatusBadRequest, "user_id and booking_id are required")
		return
	}

	rating, err := s.ratings.Submit(r.Context(), req.UserID, req.BookingID, req.Score, req.Comment)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (s *HTTPServer) handleOTPRequest(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("otp_request")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := s.otp.Issue(r.Context(), req.Email); err != nil {
		var tooSoon *otp.TooSoonError
		if errors.As(err, &tooSoon) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":             tooSoon.Error(),
				"seconds_remaining": tooSoon.SecondsRemaining,
			})
			return
		}
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *HTTPServer) handleOTPValidate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("otp_validate")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	if err := s.otp.Validate(r.Context(), req.Email, req.Code); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNotificationAction serves /api/v1/notifications/{id}/received.
func (s *HTTPServer) handleNotificationAction(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("notification_action")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/notifications/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "received" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.repo.MarkNotificationReceived(r.Context(), id, s.clock.Now()); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sessions")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = parsed
	}

	sessions, err := s.repo.GetUpcomingSessions(r.Context(), s.clock.Now(), days)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *HTTPServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_sweep")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	marked, err := s.bookings.SweepPastBookings(r.Context(), s.grace)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked_absent": marked})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_export")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Days <= 0 {
		req.Days = 7
	}

	path, err := s.exporter.AttendanceReport(r.Context(), s.clock.Now(), req.Days)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) writeEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().Str("method", r.Method).Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
