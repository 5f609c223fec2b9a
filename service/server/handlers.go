package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/brojonat/soltrack/service/db"
	"github.com/brojonat/soltrack/service/poller"
)

const (
	defaultPageLimit   = 100
	maxPageLimit       = 1000
	maxSignatureLength = 100 // base58 signatures are 87 or 88 chars
)

var validSignatureRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// transferResponse is the wire form of a stored transfer.
type transferResponse struct {
	Signature     string `json:"signature"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver"`
	SolAmount     int64  `json:"sol_amount"`
	Fee           int64  `json:"fee"`
	Timestamp     *int64 `json:"timestamp"`
	PrevBlockhash string `json:"prev_blockhash"`
}

func transferToResponse(t *db.Transfer) transferResponse {
	return transferResponse{
		Signature:     t.Signature,
		Sender:        t.Sender,
		Receiver:      t.Receiver,
		SolAmount:     t.SolAmount,
		Fee:           t.Fee,
		Timestamp:     t.Timestamp,
		PrevBlockhash: t.PrevBlockhash,
	}
}

func transfersToResponse(transfers []*db.Transfer) []transferResponse {
	resp := make([]transferResponse, len(transfers))
	for i := range transfers {
		resp[i] = transferToResponse(transfers[i])
	}
	return resp
}

// handleTransactions returns every stored transfer as a bare JSON array.
// GET /transactions
func handleTransactions(store TransferReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transfers, err := store.ListAllTransfers(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list transfers", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, transfersToResponse(transfers), http.StatusOK)
	})
}

// handleListTransfers returns one page of transfers.
// GET /api/v1/transfers?limit={1..1000}&offset={>=0}
func handleListTransfers(store TransferReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		limit, err := parseIntParam(query.Get("limit"), defaultPageLimit)
		if err != nil {
			writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
			return
		}
		if limit < 1 {
			writeError(w, "limit must be at least 1", http.StatusBadRequest)
			return
		}
		if limit > maxPageLimit {
			writeError(w, "limit cannot exceed 1000", http.StatusBadRequest)
			return
		}

		offset, err := parseIntParam(query.Get("offset"), 0)
		if err != nil {
			writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
			return
		}
		if offset < 0 {
			writeError(w, "offset cannot be negative", http.StatusBadRequest)
			return
		}

		transfers, err := store.ListTransfers(r.Context(), limit, offset)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list transfers", "limit", limit, "offset", offset, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := transfersToResponse(transfers)
		logger.DebugContext(r.Context(), "transfers listed", "count", len(resp))

		writeJSON(w, map[string]interface{}{
			"transfers": resp,
			"count":     len(resp),
			"limit":     limit,
			"offset":    offset,
		}, http.StatusOK)
	})
}

// handleGetTransfer returns one transfer by signature.
// GET /api/v1/transfers/{signature}
func handleGetTransfer(store TransferReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		if len(signature) > maxSignatureLength || !validSignatureRegex.MatchString(signature) {
			writeError(w, "invalid signature", http.StatusBadRequest)
			return
		}

		t, err := store.GetTransfer(r.Context(), signature)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "transfer not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get transfer", "signature", signature, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, transferToResponse(t), http.StatusOK)
	})
}

type statusResponse struct {
	Account   string              `json:"account,omitempty"`
	State     string              `json:"state"`
	Stored    int64               `json:"stored"`
	LastCycle *poller.CycleResult `json:"last_cycle"`
}

// handleStatus reports the poller state and the number of stored transfers.
// The state is "external" when polling runs in a Temporal worker.
// GET /api/v1/status
func handleStatus(store TransferReader, status PollerStatus, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := store.CountTransfers(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to count transfers", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := statusResponse{State: "external", Stored: count}
		if status != nil {
			resp.Account = status.Account().String()
			resp.State = status.State().String()
			resp.LastCycle = status.LastCycle()
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

func parseIntParam(raw string, def int32) (int32, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}
