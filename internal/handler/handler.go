package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/assoclab/membership-billing/internal/middleware"
	"github.com/assoclab/membership-billing/internal/models"
	"github.com/assoclab/membership-billing/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles staff user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := h.svc.Register(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles staff authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	token, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type createPlanRequest struct {
	MemberID             string               `json:"member_id"`
	DuesScheduleID       string               `json:"dues_schedule_id"`
	PlanType             string               `json:"plan_type"`
	TotalAmount          decimal.Decimal      `json:"total_amount"`
	NumberOfInstallments int                  `json:"number_of_installments"`
	Frequency            string               `json:"frequency"`
	StartDate            string               `json:"start_date"`
	EndDate              string               `json:"end_date"`
	Reason               string               `json:"reason"`
	PaymentMethod        string               `json:"payment_method"`
	PaymentAccount       string               `json:"payment_account"`
	ApprovalRequired     bool                 `json:"approval_required"`
	Installments         []models.Installment `json:"installments"`
}

func (req *createPlanRequest) toInput() (service.CreatePlanInput, error) {
	input := service.CreatePlanInput{
		MemberID:             req.MemberID,
		DuesScheduleID:       req.DuesScheduleID,
		PlanType:             models.PlanType(req.PlanType),
		TotalAmount:          req.TotalAmount,
		NumberOfInstallments: req.NumberOfInstallments,
		Frequency:            models.Frequency(req.Frequency),
		Reason:               req.Reason,
		PaymentMethod:        req.PaymentMethod,
		PaymentAccount:       req.PaymentAccount,
		ApprovalRequired:     req.ApprovalRequired,
		Installments:         req.Installments,
	}
	var err error
	if input.StartDate, err = parseDate(req.StartDate); err != nil {
		return input, models.NewValidationError("invalid start_date: %s", req.StartDate)
	}
	if req.EndDate != "" {
		if input.EndDate, err = parseDate(req.EndDate); err != nil {
			return input, models.NewValidationError("invalid end_date: %s", req.EndDate)
		}
	}
	return input, nil
}

// CreatePlan handles payment plan creation
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := h.svc.CreatePlan(input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// RequestPlan handles member-requested plans, which land in the approval queue
func (h *Handler) RequestPlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := h.svc.RequestPlan(input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

type previewRequest struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Installments int             `json:"installments"`
	Frequency    string          `json:"frequency"`
	StartDate    string          `json:"start_date"`
}

// PreviewPlan calculates a schedule without persisting anything
func (h *Handler) PreviewPlan(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		start = time.Now()
	}
	preview, err := h.svc.PreviewPlan(req.TotalAmount, req.Installments, models.Frequency(req.Frequency), start)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// GetPlanSummary reports a plan's collection progress
func (h *Handler) GetPlanSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetPlanSummary(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListMemberPlans returns all plans for one member
func (h *Handler) ListMemberPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListMemberPlans(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_plans": plans})
}

// Submit activates a draft plan
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Submit(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestApproval queues a draft plan for approval
func (h *Handler) RequestApproval(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestApproval(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type decisionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// Approve activates a pending plan; the approver comes from the auth token
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	approver, _ := r.Context().Value(middleware.UserIDKey).(string)
	if approver == "" {
		http.Error(w, "Approver identity missing", http.StatusUnauthorized)
		return
	}
	var req decisionRequest
	json.NewDecoder(r.Body).Decode(&req)
	if err := h.svc.Approve(mux.Vars(r)["id"], approver, req.Notes); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reject declines a pending plan
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	json.NewDecoder(r.Body).Decode(&req)
	if err := h.svc.Reject(mux.Vars(r)["id"], req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel terminates a plan
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	json.NewDecoder(r.Body).Decode(&req)
	if err := h.svc.Cancel(mux.Vars(r)["id"], req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	InstallmentNumber int             `json:"installment_number"`
	Amount            decimal.Decimal `json:"amount"`
	Reference         string          `json:"reference"`
	Date              string          `json:"date"`
}

// ApplyPayment records a payment against one installment
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var date time.Time
	if req.Date != "" {
		var err error
		if date, err = parseDate(req.Date); err != nil {
			writeError(w, models.NewValidationError("invalid date: %s", req.Date))
			return
		}
	}
	result, err := h.svc.ApplyPayment(mux.Vars(r)["id"], req.InstallmentNumber, req.Amount, req.Reference, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunOverdueSweep triggers the overdue escalation sweep
func (h *Handler) RunOverdueSweep(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			writeError(w, models.NewValidationError("invalid as_of: %s", v))
			return
		}
		asOf = parsed
	}
	count, err := h.svc.RunOverdueSweep(asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"overdue_count": count})
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	var notFound *models.NotFoundError
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &validation), errors.Is(err, models.ErrInstallmentSettled):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrPlanConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
