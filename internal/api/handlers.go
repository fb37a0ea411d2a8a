package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/postfiatorg/tasknode/internal/memo"
	"github.com/postfiatorg/tasknode/internal/tasknode"
	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

var ErrMissingHash = errors.New("transaction hash is required")

type errorResponse struct {
	Error string `json:"error"`
}

type putTransactionRequest struct {
	Hash         string          `json:"hash"`
	LedgerIndex  int64           `json:"ledger_index"`
	CloseTimeISO string          `json:"close_time_iso"`
	Meta         json.RawMessage `json:"meta"`
	TxJSON       json.RawMessage `json:"tx_json"`
	Validated    bool            `json:"validated"`
}

// PutTransaction is the listener's ingestion boundary: an idempotent upsert
// keyed by hash that runs the full derivation pipeline synchronously.
func (s *Server) PutTransaction(c echo.Context) error {
	var req putTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if req.Hash == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: ErrMissingHash.Error()})
	}

	tx := &store.TransactionData{
		Hash:         req.Hash,
		LedgerIndex:  req.LedgerIndex,
		CloseTimeISO: req.CloseTimeISO,
		Meta:         req.Meta,
		TxJSON:       req.TxJSON,
		Validated:    req.Validated,
	}

	if err := s.processor.ProcessTransaction(c.Request().Context(), tx); err != nil {
		return s.errorJSON(c, err)
	}

	return c.NoContent(http.StatusCreated)
}

func (s *Server) GetTransaction(c echo.Context) error {
	ctx := c.Request().Context()
	hash := c.Param("hash")

	tx, err := s.store.GetTransaction(ctx, hash)
	if err != nil {
		return s.errorJSON(c, err)
	}

	memoData, err := s.store.GetMemo(ctx, hash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return s.errorJSON(c, err)
	}

	projected, err := tasknode.Project(tx, memoData)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, projected)
}

func (s *Server) PurgeTransaction(c echo.Context) error {
	if err := s.processor.PurgeTransaction(c.Request().Context(), c.Param("hash")); err != nil {
		return s.errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type balanceResponse struct {
	Account string  `json:"account"`
	Balance float64 `json:"balance"`
}

// GetBalance returns 0 for accounts that never appeared in a transfer,
// never an error.
func (s *Server) GetBalance(c echo.Context) error {
	account := c.Param("account")

	balance, err := s.store.GetBalance(c.Request().Context(), account)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, balanceResponse{Account: account, Balance: balance})
}

type memoResponse struct {
	Hash              string     `json:"hash"`
	Account           string     `json:"account"`
	Destination       string     `json:"destination"`
	PFTAmount         *float64   `json:"pft_amount"`
	XRPFee            *float64   `json:"xrp_fee"`
	MemoFormat        string     `json:"memo_format"`
	MemoType          string     `json:"memo_type"`
	MemoData          string     `json:"memo_data"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
	TransactionResult string     `json:"transaction_result"`
}

func toMemoResponse(m *store.MemoData) memoResponse {
	resp := memoResponse{
		Hash:              m.Hash,
		Account:           m.Account,
		Destination:       m.Destination,
		PFTAmount:         m.PFTAmount,
		XRPFee:            m.XRPFee,
		MemoFormat:        m.MemoFormat,
		MemoType:          m.MemoType,
		MemoData:          m.MemoData,
		TransactionResult: m.TransactionResult,
	}
	if !m.Timestamp.IsZero() {
		t := m.Timestamp
		resp.Timestamp = &t
	}
	return resp
}

func (s *Server) ListMemos(c echo.Context) error {
	filter := store.MemoFilter{
		Account:     c.QueryParam("account"),
		Destination: c.QueryParam("destination"),
		MemoType:    c.QueryParam("memo_type"),
	}

	if c.QueryParams().Has("memo_format") {
		format := c.QueryParam("memo_format")
		filter.MemoFormat = &format
	}

	if pattern := c.QueryParam("memo_data"); pattern != "" {
		filter.MemoDataLike = &pattern
	}

	for param, target := range map[string]**time.Time{
		"from": &filter.From,
		"to":   &filter.To,
	} {
		if value := c.QueryParam(param); value != "" {
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			}
			*target = &t
		}
	}

	if value := c.QueryParam("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		filter.Limit = limit
	}

	memos, err := s.store.ListMemos(c.Request().Context(), filter)
	if err != nil {
		return s.errorJSON(c, err)
	}

	result := make([]memoResponse, 0, len(memos))
	for _, m := range memos {
		result = append(result, toMemoResponse(m))
	}

	return c.JSON(http.StatusOK, result)
}

type findResponseRequest struct {
	RequestAccount      string    `json:"request_account"`
	RequestDestination  string    `json:"request_destination"`
	RequestTime         time.Time `json:"request_time"`
	ResponseMemoType    string    `json:"response_memo_type"`
	ResponseMemoFormat  *string   `json:"response_memo_format"`
	ResponseMemoData    *string   `json:"response_memo_data"`
	RequireAfterRequest *bool     `json:"require_after_request"`
}

func (s *Server) FindResponse(c echo.Context) error {
	var req findResponseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	requireAfter := true
	if req.RequireAfterRequest != nil {
		requireAfter = *req.RequireAfterRequest
	}

	match, err := s.correlator.FindResponse(c.Request().Context(), tasknode.ResponseQuery{
		RequestAccount:      req.RequestAccount,
		RequestDestination:  req.RequestDestination,
		RequestTime:         req.RequestTime,
		ResponseMemoType:    req.ResponseMemoType,
		ResponseMemoFormat:  req.ResponseMemoFormat,
		ResponseMemoData:    req.ResponseMemoData,
		RequireAfterRequest: requireAfter,
	})
	if err != nil {
		return s.errorJSON(c, err)
	}

	if match == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, toMemoResponse(match))
}

type recordReviewRequest struct {
	Processed      bool   `json:"processed"`
	RuleName       string `json:"rule_name"`
	ResponseTxHash string `json:"response_tx_hash"`
	Notes          string `json:"notes"`
}

func (s *Server) RecordReview(c echo.Context) error {
	var req recordReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	review := &store.ReviewData{
		Hash:           c.Param("hash"),
		Processed:      req.Processed,
		RuleName:       req.RuleName,
		ResponseTxHash: req.ResponseTxHash,
		Notes:          req.Notes,
	}

	if err := s.processor.RecordReview(c.Request().Context(), review); err != nil {
		return s.errorJSON(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

type enrichedReviewResponse struct {
	Hash           string        `json:"hash"`
	Processed      bool          `json:"processed"`
	RuleName       string        `json:"rule_name"`
	ResponseTxHash string        `json:"response_tx_hash"`
	Notes          string        `json:"notes"`
	ReviewedAt     time.Time     `json:"reviewed_at"`
	Memo           *memoResponse `json:"memo,omitempty"`
}

func (s *Server) ListReviews(c echo.Context) error {
	limit := 0
	if value := c.QueryParam("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		limit = parsed
	}

	reviews, err := s.store.ListEnrichedReviews(c.Request().Context(), limit)
	if err != nil {
		return s.errorJSON(c, err)
	}

	result := make([]enrichedReviewResponse, 0, len(reviews))
	for _, enriched := range reviews {
		resp := enrichedReviewResponse{
			Hash:           enriched.Review.Hash,
			Processed:      enriched.Review.Processed,
			RuleName:       enriched.Review.RuleName,
			ResponseTxHash: enriched.Review.ResponseTxHash,
			Notes:          enriched.Review.Notes,
			ReviewedAt:     enriched.Review.ReviewedAt,
		}
		if enriched.Memo != nil {
			m := toMemoResponse(enriched.Memo)
			resp.Memo = &m
		}
		result = append(result, resp)
	}

	return c.JSON(http.StatusOK, result)
}

type authorizeRequest struct {
	Source       string `json:"source"`
	SourceUserID string `json:"source_user_id"`
}

func (s *Server) Authorize(c echo.Context) error {
	var req authorizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	if err := s.registry.Authorize(c.Request().Context(), c.Param("address"), req.Source, req.SourceUserID); err != nil {
		return s.errorJSON(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) Deauthorize(c echo.Context) error {
	if err := s.registry.Deauthorize(c.Request().Context(), c.Param("address")); err != nil {
		return s.errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type flagRequest struct {
	FlagType  string    `json:"flag_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) FlagAddress(c echo.Context) error {
	var req flagRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	if err := s.registry.Flag(c.Request().Context(), c.Param("address"), req.FlagType, req.ExpiresAt); err != nil {
		return s.errorJSON(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

type addressResponse struct {
	Address          string     `json:"address"`
	IsAuthorized     bool       `json:"is_authorized"`
	AuthorizedAt     time.Time  `json:"authorized_at"`
	DeauthorizedAt   *time.Time `json:"deauthorized_at"`
	AuthSource       string     `json:"auth_source"`
	AuthSourceUserID string     `json:"auth_source_user_id"`
	FlagType         string     `json:"flag_type,omitempty"`
	FlagExpiresAt    *time.Time `json:"flag_expires_at,omitempty"`
}

func (s *Server) GetAddress(c echo.Context) error {
	auth, err := s.registry.GetAuthorization(c.Request().Context(), c.Param("address"))
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, addressResponse{
		Address:          auth.Address,
		IsAuthorized:     auth.IsAuthorized,
		AuthorizedAt:     auth.AuthorizedAt,
		DeauthorizedAt:   auth.DeauthorizedAt,
		AuthSource:       auth.AuthSource,
		AuthSourceUserID: auth.AuthSourceUserID,
		FlagType:         auth.FlagType,
		FlagExpiresAt:    auth.FlagExpiresAt,
	})
}

func (s *Server) Health(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	return c.String(http.StatusOK, "OK")
}

func (s *Server) errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tasknode.ErrInvalidAddress),
		errors.Is(err, tasknode.ErrInvalidFlagType),
		errors.Is(err, tasknode.ErrInvalidPayload),
		errors.Is(err, tasknode.ErrInvalidCloseTime),
		errors.Is(err, tasknode.ErrInvalidMemo),
		errors.Is(err, memo.ErrDecodeInvalidHex),
		errors.Is(err, memo.ErrDecodeInvalidUTF8):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrTransferConflict):
		// Transient: the caller owns retry policy.
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.Path()), slog.String("err", err.Error()))
	}

	return c.JSON(status, errorResponse{Error: err.Error()})
}
