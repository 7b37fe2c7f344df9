package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"shared-asset-ledger/internal/asset"
	"shared-asset-ledger/internal/auth"
	"shared-asset-ledger/internal/domain"
	"shared-asset-ledger/internal/ledger"
)

// maxRequestBody bounds mutating request bodies.
const maxRequestBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), errorResponse{Error: err.Error()})
}

// httpStatus maps ledger and auth errors onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrBadIdentity),
		errors.Is(err, auth.ErrBadSignature),
		errors.Is(err, errNoAuthorization):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrTokenNotFound),
		errors.Is(err, ledger.ErrNoBalance),
		errors.Is(err, ledger.ErrNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyConfigured),
		errors.Is(err, ledger.ErrDuplicateTokenID):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrFieldTooLong),
		errors.Is(err, ledger.ErrInvalidTokenID),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, ledger.ErrInvalidIdentity),
		errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSymbolMismatch),
		errors.Is(err, ledger.ErrSupplyExceeded),
		errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeSigned reads a signed envelope, resolves authorization and decodes
// the payload into v.
func (s *Server) decodeSigned(r *http.Request, v any) (auth.Context, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return auth.Context{}, fmt.Errorf("read request body: %w", err)
	}

	var req signedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return auth.Context{}, fmt.Errorf("decode request: %w", err)
	}

	ac, err := s.authorize(&req)
	if err != nil {
		return auth.Context{}, err
	}

	if err := json.Unmarshal(req.Payload, v); err != nil {
		return auth.Context{}, fmt.Errorf("decode payload: %w", err)
	}
	return ac, nil
}

func pathTokenID(r *http.Request) (domain.TokenID, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token id %q", r.PathValue("id"))
	}
	return domain.TokenID(id), nil
}

// amount builds an operation amount from request units, defaulting to the
// configured symbol at precision 0.
func (s *Server) amount(r *http.Request, units int64, symbolCode string) (asset.Amount, error) {
	if symbolCode == "" {
		cfg, err := s.ledger.Config(r.Context())
		if err != nil {
			return asset.Amount{}, err
		}
		symbolCode = cfg.SymbolCode
	}
	return asset.Amount{Units: units, Symbol: asset.Symbol{Code: symbolCode, Precision: 0}}, nil
}

// --- operations ---

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SymbolCode string `json:"symbol_code"`
	}
	ac, err := s.decodeSigned(r, &payload)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.Configure(r.Context(), ac, payload.SymbolCode); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol_code": payload.SymbolCode})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TokenID     uint64 `json:"token_id,omitempty"`
		Issuer      string `json:"issuer"`
		Status      uint32 `json:"status"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Field1      string `json:"field1"`
		Field2      string `json:"field2"`
		Field3      string `json:"field3"`
	}
	ac, err := s.decodeSigned(r, &payload)
	if err != nil {
		s.writeError(w, err)
		return
	}

	issuer := domain.Identity(payload.Issuer)
	id := domain.TokenID(payload.TokenID)
	if id != 0 {
		err = s.ledger.CreateWithID(r.Context(), ac, id, issuer, payload.Status,
			payload.Name, payload.Description, payload.Field1, payload.Field2, payload.Field3)
	} else {
		id, err = s.ledger.Create(r.Context(), ac, issuer, payload.Status,
			payload.Name, payload.Description, payload.Field1, payload.Field2, payload.Field3)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"token_id": uint64(id)})
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		To      string `json:"to"`
		TokenID uint64 `json:"token_id"`
		Units   int64  `json:"units"`
		Symbol  string `json:"symbol,omitempty"`
		Memo    string `json:"memo"`
	}
	ac, err := s.decodeSigned(r, &payload)
	if err != nil {
		s.writeError(w, err)
		return
	}

	quantity, err := s.amount(r, payload.Units, payload.Symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	err = s.ledger.Issue(r.Context(), ac, domain.Identity(payload.To),
		domain.TokenID(payload.TokenID), quantity, payload.Memo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "issued"})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		From    string `json:"from"`
		To      string `json:"to"`
		TokenID uint64 `json:"token_id"`
		Units   int64  `json:"units"`
		Symbol  string `json:"symbol,omitempty"`
		Memo    string `json:"memo"`
	}
	ac, err := s.decodeSigned(r, &payload)
	if err != nil {
		s.writeError(w, err)
		return
	}

	quantity, err := s.amount(r, payload.Units, payload.Symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}

	err = s.ledger.Transfer(r.Context(), ac, domain.Identity(payload.From),
		domain.Identity(payload.To), domain.TokenID(payload.TokenID), quantity, payload.Memo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "transferred"})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var payload struct {
		Status uint32 `json:"status"`
	}
	ac, err := s.decodeSigned(r, &payload)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.ledger.SetStatus(r.Context(), ac, tokenID, payload.Status); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "updated"})
}

type setFieldKind int

const (
	fieldName setFieldKind = iota
	fieldDescription
	fieldOne
	fieldTwo
	fieldThree
)

// handleSetField builds a handler updating one of the string metadata fields.
func (s *Server) handleSetField(kind setFieldKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenID, err := pathTokenID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		var payload struct {
			Value string `json:"value"`
		}
		ac, err := s.decodeSigned(r, &payload)
		if err != nil {
			s.writeError(w, err)
			return
		}

		switch kind {
		case fieldName:
			err = s.ledger.SetName(r.Context(), ac, tokenID, payload.Value)
		case fieldDescription:
			err = s.ledger.SetDescription(r.Context(), ac, tokenID, payload.Value)
		case fieldOne:
			err = s.ledger.SetField1(r.Context(), ac, tokenID, payload.Value)
		case fieldTwo:
			err = s.ledger.SetField2(r.Context(), ac, tokenID, payload.Value)
		case fieldThree:
			err = s.ledger.SetField3(r.Context(), ac, tokenID, payload.Value)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "updated"})
	}
}

// --- queries ---

type tokenResponse struct {
	ID          uint64 `json:"id"`
	Issuer      string `json:"issuer"`
	Supply      string `json:"supply"`
	SupplyUnits int64  `json:"supply_units"`
	MaxSupply   string `json:"max_supply"`
	MaxUnits    int64  `json:"max_supply_units"`
	Status      uint32 `json:"status"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Field1      string `json:"field1"`
	Field2      string `json:"field2"`
	Field3      string `json:"field3"`
}

func tokenJSON(t *domain.Token) tokenResponse {
	return tokenResponse{
		ID:          uint64(t.ID),
		Issuer:      string(t.Issuer),
		Supply:      t.Supply.String(),
		SupplyUnits: t.Supply.Units,
		MaxSupply:   t.MaxSupply.String(),
		MaxUnits:    t.MaxSupply.Units,
		Status:      t.Status,
		Name:        t.Name,
		Description: t.Description,
		Field1:      t.Field1,
		Field2:      t.Field2,
		Field3:      t.Field3,
	}
}

type balanceResponse struct {
	Owner   string `json:"owner"`
	TokenID uint64 `json:"token_id"`
	Amount  string `json:"amount"`
	Units   int64  `json:"units"`
	Payer   string `json:"payer"`
}

func balanceJSON(b *domain.Balance) balanceResponse {
	return balanceResponse{
		Owner:   string(b.Owner),
		TokenID: uint64(b.TokenID),
		Amount:  b.Amount.String(),
		Units:   b.Amount.Units,
		Payer:   string(b.Payer),
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.ledger.Config(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol_code": cfg.SymbolCode})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.ledger.Tokens(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		resp = append(resp, tokenJSON(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	token, err := s.ledger.Token(r.Context(), tokenID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenJSON(token))
}

func (s *Server) handleHolders(w http.ResponseWriter, r *http.Request) {
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	holders, err := s.ledger.Holders(r.Context(), tokenID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]balanceResponse, 0, len(holders))
	for _, b := range holders {
		resp = append(resp, balanceJSON(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalancesByOwner(w http.ResponseWriter, r *http.Request) {
	owner := domain.Identity(r.PathValue("owner"))

	balances, err := s.ledger.BalancesByOwner(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		resp = append(resp, balanceJSON(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	owner := domain.Identity(r.PathValue("owner"))
	tokenID, err := pathTokenID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	balance, err := s.ledger.Balance(r.Context(), owner, tokenID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceJSON(balance))
}

// handleJournal returns journal entries, optionally filtered by token_id or
// an applied_at range (from/to, ms).
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "journal not enabled"})
		return
	}

	var (
		entries []*domain.JournalEntry
		err     error
	)
	q := r.URL.Query()
	switch {
	case q.Get("token_id") != "":
		var id uint64
		id, err = strconv.ParseUint(q.Get("token_id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid token_id"})
			return
		}
		entries, err = s.journal.GetByTokenID(r.Context(), domain.TokenID(id))
	case q.Get("from") != "" || q.Get("to") != "":
		var from, to int64
		if from, to, err = parseTimeRange(q.Get("from"), q.Get("to")); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		entries, err = s.journal.GetByTimeRange(r.Context(), from, to)
	default:
		entries, err = s.journal.GetAll(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]journalEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryJSON(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseTimeRange(fromStr, toStr string) (int64, int64, error) {
	var from, to int64 = 0, int64(1)<<62
	var err error
	if fromStr != "" {
		if from, err = strconv.ParseInt(fromStr, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid from: %q", fromStr)
		}
	}
	if toStr != "" {
		if to, err = strconv.ParseInt(toStr, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid to: %q", toStr)
		}
	}
	return from, to, nil
}

// handleVerify recomputes the ledger invariants and reports violations.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "verification not enabled"})
		return
	}

	report, err := s.verifier.VerifyAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusConflict
	}
	writeJSON(w, status, report)
}
