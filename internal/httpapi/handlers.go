package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

const maxBodyBytes = 64 << 10

func callerOf(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	caller := ledger.Address(r.Header.Get(CallerHeader))
	if caller.IsZero() {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
			Code:    "MISSING_CALLER",
			Message: CallerHeader + " header is required",
		}})
		return "", false
	}
	return caller, true
}

// decodeArgs reads the request body as a journal argument object. An empty
// body is an empty object.
func decodeArgs(r *http.Request) (ir.Object, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return ir.Object{}, nil
	}
	var args ir.Object
	if err := json.Unmarshal(body, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = ir.Object{}
	}
	return args, nil
}

// operation dispatches op with the body as arguments. When pathArg is set,
// the {id} route variable is passed under that name and overrides the body.
func (s *Server) operation(op, pathArg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		args, err := decodeArgs(r)
		if err != nil {
			badRequest(w, fmt.Sprintf("invalid body: %v", err))
			return
		}
		if pathArg != "" {
			args[pathArg] = ir.String(mux.Vars(r)["id"])
		}

		result, err := s.engine.Dispatch(r.Context(), op, caller, args)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		status := http.StatusOK
		if op == engine.OpOfferToBuyLand {
			status = http.StatusCreated
		}
		writeJSON(w, status, result)
	}
}

type landView struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	Paid             string    `json:"paid"`
	State            string    `json:"state"`
	AuctionEnd       time.Time `json:"auction_end"`
	RedeemedAt       time.Time `json:"redeemed_at,omitzero"`
	CashbackAmount   string    `json:"cashback_amount"`
	CashbackRedeemed bool      `json:"cashback_redeemed"`
	OnSale           bool      `json:"on_sale"`
	SellPrice        string    `json:"sell_price"`
}

func viewLand(l ledger.Land) landView {
	return landView{
		ID:               l.ID.String(),
		Owner:            l.Owner.String(),
		Paid:             ledger.FormatAmount(l.Paid),
		State:            l.State.String(),
		AuctionEnd:       l.AuctionEnd,
		RedeemedAt:       l.RedeemedAt,
		CashbackAmount:   ledger.FormatAmount(l.CashbackAmount),
		CashbackRedeemed: l.CashbackRedeemed,
		OnSale:           l.OnSale,
		SellPrice:        ledger.FormatAmount(l.SellPrice),
	}
}

type offerView struct {
	ID         string    `json:"id"`
	LandID     string    `json:"land_id"`
	Buyer      string    `json:"buyer"`
	Amount     string    `json:"amount"`
	Expiration time.Time `json:"expiration"`
	Status     string    `json:"status"`
}

func viewOffer(o ledger.Offer) offerView {
	return offerView{
		ID:         o.ID.String(),
		LandID:     o.LandID.String(),
		Buyer:      o.Buyer.String(),
		Amount:     ledger.FormatAmount(o.Amount),
		Expiration: o.Expiration,
		Status:     o.Status.String(),
	}
}

type saleView struct {
	LandID string `json:"land_id"`
	OnSale bool   `json:"on_sale"`
	Price  string `json:"price"`
}

func (s *Server) getLand(w http.ResponseWriter, r *http.Request) {
	id, err := ledger.ParseLandID(mux.Vars(r)["id"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	land, err := s.engine.Land(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewLand(land))
}

func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	id, err := ledger.ParseOfferID(mux.Vars(r)["id"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	offer, err := s.engine.Offer(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOffer(offer))
}

func (s *Server) activeLands(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.GetActiveLands(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"lands": out})
}

func (s *Server) sales(w http.ResponseWriter, r *http.Request) {
	sales, err := s.engine.GetLandsOnSaleOrSold(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out := make([]saleView, len(sales))
	for i, sale := range sales {
		out[i] = saleView{LandID: sale.LandID.String(), OnSale: sale.OnSale, Price: ledger.FormatAmount(sale.Price)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": out})
}

func (s *Server) myOffers(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	out := []offerView{}
	for offer, err := range s.engine.CheckMyLandOffer(r.Context(), caller) {
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		out = append(out, viewOffer(offer))
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": out})
}

func (s *Server) myLands(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	out := []landView{}
	for land, err := range s.engine.CheckWonLands(r.Context(), caller) {
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		out = append(out, viewLand(land))
	}
	writeJSON(w, http.StatusOK, map[string]any{"lands": out})
}

func (s *Server) settings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":            s.engine.Owner().String(),
		"delegate":         s.engine.Delegate().String(),
		"paused":           s.engine.Paused(),
		"auction_duration": s.engine.AuctionDuration().String(),
		"initial_land_bid": ledger.FormatAmount(s.engine.InitialLandBid()),
		"token":            s.engine.TokenAddress().String(),
		"land":             s.engine.LandAddress().String(),
	})
}

// Reference asset routes.

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeAssetError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ledger.ErrNonexistentToken):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrNotTokenOwner):
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: "ASSET", Message: err.Error()}})
}

// mintToken credits tokens. Only the ledger owner may mint.
func (s *Server) mintToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	if caller != s.engine.Owner() {
		writeJSON(w, http.StatusForbidden, errorBody{Error: errorDetail{
			Code:    string(engine.CodeNotContractOwner),
			Kind:    string(engine.KindAuthorization),
			Message: "only the owner may mint",
		}})
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.To == "" {
		badRequest(w, "to: must not be empty")
		return
	}
	if err := s.token.Mint(ledger.Address(req.To), amount); err != nil {
		writeAssetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"to":      req.To,
		"balance": ledger.FormatAmount(s.token.BalanceOf(ledger.Address(req.To))),
	})
}

// approveToken sets the caller's allowance for spender, which defaults to
// the engine.
func (s *Server) approveToken(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	spender := ledger.Address(req.Spender)
	if spender.IsZero() {
		spender = s.engine.Address()
	}
	if err := s.token.Approve(caller, spender, amount); err != nil {
		writeAssetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":     caller.String(),
		"spender":   spender.String(),
		"allowance": ledger.FormatAmount(s.token.Allowance(caller, spender)),
	})
}

func (s *Server) tokenBalance(w http.ResponseWriter, r *http.Request) {
	addr := ledger.Address(mux.Vars(r)["address"])
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.String(),
		"balance": ledger.FormatAmount(s.token.BalanceOf(addr)),
	})
}

// approveDeed approves the engine to move the caller's parcel.
func (s *Server) approveDeed(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, err := ledger.ParseLandID(mux.Vars(r)["id"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.deed.Approve(caller, s.engine.Address(), id); err != nil {
		writeAssetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"land_id":  id.String(),
		"approved": s.deed.Approved(id).String(),
	})
}

func (s *Server) deedOwner(w http.ResponseWriter, r *http.Request) {
	id, err := ledger.ParseLandID(mux.Vars(r)["id"])
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	owner, err := s.deed.OwnerOf(id)
	if err != nil {
		writeAssetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"land_id":  id.String(),
		"owner":    owner.String(),
		"approved": s.deed.Approved(id).String(),
	})
}
