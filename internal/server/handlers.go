package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/buildinfo"
	"github.com/cleared-dev/journalrag/internal/classify"
	"github.com/cleared-dev/journalrag/internal/model"
	"github.com/cleared-dev/journalrag/internal/pipeline"
)

type handlers struct {
	service Service
	logger  *zap.Logger
}

// Response is the JSON envelope of every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

// CandidateResponse is one retrieved account.
type CandidateResponse struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// ClassifyResponse is the result of POST /v1/classify.
type ClassifyResponse struct {
	RunID      string              `json:"run_id"`
	Account    string              `json:"account"`
	Matched    bool                `json:"matched"`
	Answer     string              `json:"answer,omitempty"` // raw oracle text when unmatched
	Candidates []CandidateResponse `json:"candidates"`
}

// PostingResponse is one posting of a journaled invoice.
type PostingResponse struct {
	AccountCode string          `json:"account_code"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Status      string          `json:"status"`
	Evidence    string          `json:"evidence,omitempty"`
}

// JournalResponse is the result of POST /v1/journal.
type JournalResponse struct {
	RunID        string            `json:"run_id"`
	Postings     []PostingResponse `json:"postings"`
	Balanced     bool              `json:"balanced"`
	TotalDebit   decimal.Decimal   `json:"total_debit"`
	TotalCredit  decimal.Decimal   `json:"total_credit"`
	VATCompliant bool              `json:"vat_compliant"`
	NeedsReview  bool              `json:"needs_review"`
	Violations   []string          `json:"violations,omitempty"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   buildinfo.Version,
		},
	})
}

func (h *handlers) classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid request body: " + err.Error()})
		return
	}

	res, err := h.service.Classify(c.Request.Context(), model.LineItem{Description: req.Description, Amount: req.Amount})
	if err != nil {
		h.fail(c, "classify", err)
		return
	}

	out := ClassifyResponse{
		RunID:      res.RunID,
		Account:    res.Account,
		Matched:    res.Matched(),
		Candidates: make([]CandidateResponse, len(res.Candidates)),
	}
	if u, ok := res.Outcome.(classify.Unmatched); ok {
		out.Answer = u.Raw
	}
	for i, cand := range res.Candidates {
		out.Candidates[i] = CandidateResponse{
			Code:        cand.Entry.Code,
			Description: cand.Entry.Description,
			Score:       cand.Score,
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

func (h *handlers) journal(c *gin.Context) {
	var inv model.InvoiceData
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid invoice: " + err.Error()})
		return
	}

	res, err := h.service.Journal(c.Request.Context(), inv)
	if err != nil {
		h.fail(c, "journal", err)
		return
	}

	out := JournalResponse{
		RunID:        res.RunID,
		Postings:     make([]PostingResponse, len(res.Postings)),
		Balanced:     res.Balance.IsBalanced,
		TotalDebit:   res.Balance.TotalDebit,
		TotalCredit:  res.Balance.TotalCredit,
		VATCompliant: res.VATCompliant,
		NeedsReview:  res.NeedsReview(),
	}
	for i, p := range res.Postings {
		out.Postings[i] = PostingResponse{
			AccountCode: p.AccountCode,
			Description: p.Description,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Status:      string(p.Status),
			Evidence:    p.Evidence,
		}
	}
	for _, v := range res.Violations {
		out.Violations = append(out.Violations, v.Error())
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// fail maps pipeline errors to status codes: bad input 400, oracle down
// 502, anything else 500.
func (h *handlers) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput), errors.Is(err, model.ErrNegativeAmount):
		status = http.StatusBadRequest
	case errors.Is(err, classify.ErrOracleUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
	} else {
		h.logger.Warn("Request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, Response{Error: err.Error()})
}
