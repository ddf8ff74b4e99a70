package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/membership-admin/internal/domain"
	"github.com/ignite/membership-admin/internal/pkg/httputil"
	"github.com/ignite/membership-admin/internal/pkg/logger"
	"github.com/ignite/membership-admin/internal/service/geography"
	"github.com/ignite/membership-admin/internal/service/membership"
)

// Handlers holds the services behind /api/v1.
type Handlers struct {
	members  *membership.Service
	resolver geography.WardResolver
}

// NewHandlers creates the API handlers.
func NewHandlers(members *membership.Service, resolver geography.WardResolver) *Handlers {
	return &Handlers{members: members, resolver: resolver}
}

// GetMemberStatus compares a member's stored status with the derived one.
//
//	GET /api/v1/members/{memberID}/status
func (h *Handlers) GetMemberStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memberID"), 10, 64)
	if err != nil || id <= 0 {
		httputil.BadRequest(w, "memberID must be a positive integer")
		return
	}

	view, err := h.members.MemberStatus(r.Context(), id)
	if errors.Is(err, membership.ErrMemberNotFound) {
		httputil.NotFound(w, "member not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if view.Member.IDNumber != "" {
		view.Member.IDNumber = logger.RedactIDNumber(view.Member.IDNumber)
	}
	httputil.OK(w, view)
}

// GetWardGeography resolves a ward to municipality, district and province.
// An incomplete hierarchy is still a 200; the gaps are part of the answer.
//
//	GET /api/v1/wards/{wardCode}/geography
func (h *Handlers) GetWardGeography(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "wardCode"))
	if errors.Is(err, geography.ErrEmptyWardCode) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if res.Ward == nil {
		httputil.NotFound(w, "ward not found")
		return
	}
	httputil.OK(w, map[string]interface{}{
		"resolution": res,
		"complete":   res.Complete(),
	})
}

// GetStatusBreakdown returns per-province stored against derived counts.
//
//	GET /api/v1/membership/breakdown
func (h *Handlers) GetStatusBreakdown(w http.ResponseWriter, r *http.Request) {
	rows, err := h.members.StatusBreakdown(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	var total, mismatched int64
	for _, c := range rows {
		total += c.Members
		if c.Mismatched() {
			mismatched += c.Members
		}
	}
	httputil.OK(w, map[string]interface{}{
		"rows":       rows,
		"total":      total,
		"mismatched": mismatched,
	})
}

// ClassifyRequest is the body of POST /membership/classify.
type ClassifyRequest struct {
	// ExpiryDate is YYYY-MM-DD; empty or null means unknown.
	ExpiryDate    *string `json:"expiry_date"`
	AdminInactive bool    `json:"admin_inactive"`
}

// ClassifyResponse is the classification result.
type ClassifyResponse struct {
	Status domain.MembershipStatus `json:"status"`
	AsOf   string                  `json:"as_of"`
}

// ClassifyExpiry classifies a supplied expiry date against today without
// touching any stored member.
//
//	POST /api/v1/membership/classify
func (h *Handlers) ClassifyExpiry(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	var m domain.Member
	m.AdminInactive = req.AdminInactive
	if req.ExpiryDate != nil && strings.TrimSpace(*req.ExpiryDate) != "" {
		t, err := time.Parse("2006-01-02", strings.TrimSpace(*req.ExpiryDate))
		if err != nil {
			httputil.BadRequest(w, "expiry_date must be YYYY-MM-DD")
			return
		}
		m.ExpiryDate = &t
	}

	httputil.OK(w, ClassifyResponse{
		Status: h.members.ClassifyMember(m),
		AsOf:   h.members.Today().Format("2006-01-02"),
	})
}
