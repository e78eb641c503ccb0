package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/ports"
)

const (
	maxBodyBytes   = 1 << 20
	defaultPNGSize = 256
	maxPNGSize     = 2048
)

type HTTPHandler struct {
	service    ports.LinkService
	validate   *validator.Validate
	metrics    *Metrics
	logger     *slog.Logger
	trustProxy bool
}

func NewHTTPHandler(service ports.LinkService, metrics *Metrics, logger *slog.Logger, trustProxy bool) *HTTPHandler {
	return &HTTPHandler{
		service:    service,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    metrics,
		logger:     logger,
		trustProxy: trustProxy,
	}
}

// ShortenRequest payload
type ShortenRequest struct {
	URL string `json:"url" validate:"required"`
}

type ShortenResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	QRSVG    string `json:"qr_svg"`
}

type QRResponse struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"original_url"`
	Scans       int64     `json:"scans"`
	CreatedAt   time.Time `json:"created_at"`
	QRSVG       string    `json:"qr_svg"`
}

// LocationRequest payload. Lat and Lon are pointers so a missing field is
// told apart from 0.
type LocationRequest struct {
	Lat         *float64 `json:"lat" validate:"required,latitude"`
	Lon         *float64 `json:"lon" validate:"required,longitude"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
}

type LocationResponse struct {
	Message    string `json:"message"`
	LocationID int64  `json:"location_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps a service error onto its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) fail(ctx context.Context, w http.ResponseWriter, err error, notFoundMsg string) {
	status := statusFor(err)
	switch status {
	case http.StatusBadRequest:
		writeError(w, status, err.Error())
	case http.StatusNotFound:
		writeError(w, status, notFoundMsg)
	default:
		h.logger.ErrorContext(ctx, "request failed", "error", err, "request_id", RequestIDFrom(ctx))
		writeError(w, status, "internal server error")
	}
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "latitude":
		return field + " must be between -90 and 90"
	case "longitude":
		return field + " must be between -180 and 180"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}

// Shorten creates a link and returns its short URL and QR code
func (h *HTTPHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	link, svg, err := h.service.Shorten(r.Context(), req.URL)
	if err != nil {
		h.fail(r.Context(), w, err, "link not found")
		return
	}
	h.metrics.shortened.Inc()

	writeJSON(w, http.StatusCreated, ShortenResponse{
		ID:       link.ID,
		ShortURL: h.service.ShortURL(link.ID),
		QRSVG:    svg,
	})
}

// Redirect records a scan and redirects to the original URL
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Short code missing", http.StatusBadRequest)
		return
	}

	target, err := h.service.Resolve(r.Context(), id, clientIP(r, h.trustProxy), r.UserAgent())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "resolve failed", "id", id, "error", err, "request_id", RequestIDFrom(r.Context()))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	h.metrics.scans.Inc()

	http.Redirect(w, r, target, http.StatusFound)
}

// GetQR returns a link with a freshly rendered QR code. An id ending in
// ".png" returns the QR code as a PNG image instead.
func (h *HTTPHandler) GetQR(w http.ResponseWriter, r *http.Request) {
	id, wantPNG := strings.CutSuffix(r.PathValue("id"), ".png")

	link, err := h.service.GetLink(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, err, "qr not found")
		return
	}

	if wantPNG {
		h.writePNG(w, r, link.ID)
		return
	}

	svg, err := h.service.QRCodeSVG(link.ID)
	if err != nil {
		h.fail(r.Context(), w, err, "qr not found")
		return
	}

	writeJSON(w, http.StatusOK, QRResponse{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		Scans:       link.Scans,
		CreatedAt:   link.CreatedAt,
		QRSVG:       svg,
	})
}

func (h *HTTPHandler) writePNG(w http.ResponseWriter, r *http.Request, id string) {
	size := defaultPNGSize
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 {
		size = min(s, maxPNGSize)
	}

	png, err := h.service.QRCodePNG(id, size)
	if err != nil {
		h.fail(r.Context(), w, err, "qr not found")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// RegisterLocation stores a client reported position for a link
func (h *HTTPHandler) RegisterLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req LocationRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	description := ""
	if req.Description != nil {
		description = *req.Description
	}

	location, err := h.service.RegisterLocation(r.Context(), id, *req.Lat, *req.Lon, description)
	if err != nil {
		h.fail(r.Context(), w, err, "qr not found")
		return
	}

	writeJSON(w, http.StatusCreated, LocationResponse{
		Message:    "location registered for link " + id,
		LocationID: location.ID,
	})
}

// List Links
func (h *HTTPHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	links, err := h.service.ListLinks(r.Context(), page, limit)
	if err != nil {
		h.fail(r.Context(), w, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// List recent scans of a link
func (h *HTTPHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	scans, err := h.service.ListScans(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.fail(r.Context(), w, err, "link not found")
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// List locations of a link
func (h *HTTPHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(r.Context(), w, err, "link not found")
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

// Get Stats for a Link
func (h *HTTPHandler) LinkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetLinkStats(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(r.Context(), w, err, "link not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Dashboard returns table totals and the most scanned links
func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	dashboard, err := h.service.Dashboard(r.Context(), limit)
	if err != nil {
		h.fail(r.Context(), w, err, "not found")
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// clientIP is the host part of RemoteAddr, or the first X-Forwarded-For hop
// when the service runs behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
