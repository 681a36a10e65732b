package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/infra/metrics"
	"school-payment-ledger/internal/usecase"
)

// maxWebhookBody bounds gateway payloads; anything larger is not a real event.
const maxWebhookBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidSchedule):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrOverpayment):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		http.Error(w, "conflicting concurrent update, retry later", http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrGatewayUnavailable):
		http.Error(w, "payment gateway unavailable", http.StatusBadGateway)
	default:
		s.log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type planCreateRequest struct {
	StudentID        string  `json:"student_id"`
	CourseID         *string `json:"course_id,omitempty"`
	TotalAmount      string  `json:"total_amount"`
	InstallmentCount int     `json:"installment_count"`
	FirstDueDate     string  `json:"first_due_date,omitempty"` // YYYY-MM-DD
	Description      string  `json:"description,omitempty"`
}

type planResponse struct {
	Plan         *model.PaymentPlan   `json:"plan"`
	Installments []*model.Installment `json:"installments,omitempty"`
}

func (s *Server) planCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		total, err := decimal.NewFromString(req.TotalAmount)
		if err != nil {
			http.Error(w, "total_amount is not a valid amount", http.StatusBadRequest)
			return
		}
		var firstDue time.Time
		if req.FirstDueDate != "" {
			firstDue, err = time.Parse("2006-01-02", req.FirstDueDate)
			if err != nil {
				http.Error(w, "first_due_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
		}

		createdBy := "staff"
		if c := ClaimsFrom(r.Context()); c != nil {
			createdBy = c.Subject
		}

		plan, installments, err := s.plans.Create(r.Context(), usecase.CreatePlanInput{
			StudentID:        req.StudentID,
			CourseID:         req.CourseID,
			TotalAmount:      total,
			InstallmentCount: req.InstallmentCount,
			FirstDueDate:     firstDue,
			Description:      req.Description,
			CreatedBy:        createdBy,
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, planResponse{Plan: plan, Installments: installments})
	}
}

func (s *Server) planGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, installments, err := s.plans.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, planResponse{Plan: plan, Installments: installments})
	}
}

func (s *Server) plansByStudentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := s.plans.ListByStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data []*model.PaymentPlan `json:"data"`
		}{Data: plans})
	}
}

func (s *Server) plansByCourseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := s.plans.ListByCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data []*model.PaymentPlan `json:"data"`
		}{Data: plans})
	}
}

type planStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) planForceStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		changedBy := "staff"
		if c := ClaimsFrom(r.Context()); c != nil {
			changedBy = c.Subject
		}

		plan, err := s.plans.ForceStatus(r.Context(), chi.URLParam(r, "id"), model.PlanStatus(req.Status), changedBy)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, planResponse{Plan: plan})
	}
}

type payRequest struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Remarks       string `json:"remarks,omitempty"`
}

type payResponse struct {
	Installment *model.Installment `json:"installment"`
	ReceiptID   *string            `json:"receipt_id,omitempty"`
}

func (s *Server) installmentPayHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req payRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			http.Error(w, "amount is not a valid amount", http.StatusBadRequest)
			return
		}

		recordedBy := "admin"
		if c := ClaimsFrom(r.Context()); c != nil {
			recordedBy = c.Subject
		}

		inst, err := s.recorder.Record(r.Context(), usecase.RecordPaymentInput{
			InstallmentID: chi.URLParam(r, "id"),
			Amount:        amount,
			Method:        req.PaymentMethod,
			Remarks:       req.Remarks,
			RecordedBy:    recordedBy,
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payResponse{Installment: inst, ReceiptID: inst.ReceiptID})
	}
}

func (s *Server) overdueListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// days>0 runs an on-demand sweep with that threshold before listing
		if v := r.URL.Query().Get("days"); v != "" {
			days, err := strconv.Atoi(v)
			if err != nil || days < 0 {
				http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
				return
			}
			if _, err := s.overdue.Sweep(r.Context(), days); err != nil {
				s.writeDomainError(w, err)
				return
			}
		}
		installments, err := s.overdue.ListOverdue(r.Context())
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data []*model.Installment `json:"data"`
		}{Data: installments})
	}
}

func (s *Server) upcomingListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if v := r.URL.Query().Get("days"); v != "" {
			var err error
			days, err = strconv.Atoi(v)
			if err != nil || days < 0 {
				http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
				return
			}
		}
		installments, err := s.overdue.ListUpcoming(r.Context(), days)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data []*model.Installment `json:"data"`
		}{Data: installments})
	}
}

type createIntentRequest struct {
	StudentID     string `json:"student_id"`
	InstallmentID string `json:"installment_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

type createIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

func (s *Server) createIntentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			http.Error(w, "amount is not a valid amount", http.StatusBadRequest)
			return
		}
		currency := req.Currency
		if currency == "" {
			currency = s.currency
		}

		rec, clientSecret, err := s.gateway.CreateIntent(r.Context(), usecase.CreateIntentInput{
			StudentID:     req.StudentID,
			InstallmentID: req.InstallmentID,
			Amount:        amount,
			Currency:      currency,
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, createIntentResponse{IntentID: rec.ExternalIntentID, ClientSecret: clientSecret})
	}
}

// webhookHandler authenticates the delivery by signature alone and returns
// 200 for idempotent no-ops so the gateway stops redelivering.
func (s *Server) webhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "could not read body", http.StatusBadRequest)
			return
		}

		outcome, err := s.verifier.VerifyWebhook(payload, r.Header.Get("X-Gateway-Signature"))
		if err != nil {
			metrics.IncWebhookRejected()
			s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("webhook rejected")
			http.Error(w, "verification failed", http.StatusBadRequest)
			return
		}

		if err := s.gateway.HandleOutcome(r.Context(), outcome); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// unknown intent: nothing to reconcile, no point retrying
				http.Error(w, "unknown intent", http.StatusNotFound)
				return
			}
			// non-200 makes the gateway redeliver; reconciliation is idempotent
			s.writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
