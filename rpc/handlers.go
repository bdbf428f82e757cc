package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fairbet/native/fairness"
	"fairbet/native/ledger"
	"fairbet/native/round"
	"fairbet/native/seeds"
)

const maxBodyBytes = 64 * 1024

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// seedResponse is the public shape of a seed. The plaintext server seed is
// only present once the seed has been revealed.
type seedResponse struct {
	UserID         string `json:"userId"`
	ServerSeedHash string `json:"serverSeedHash"`
	ServerSeed     string `json:"serverSeed,omitempty"`
	ClientSeed     string `json:"clientSeed"`
	Nonce          uint64 `json:"nonce"`
	Active         bool   `json:"active"`
	CreatedAt      int64  `json:"createdAt"`
	RevealedAt     int64  `json:"revealedAt,omitempty"`
}

func seedToResponse(seed *seeds.Seed) seedResponse {
	resp := seedResponse{
		UserID:         seed.UserID,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeed:     seed.ClientSeed,
		Nonce:          seed.Nonce,
		Active:         seed.Active,
		CreatedAt:      seed.CreatedAt,
		RevealedAt:     seed.RevealedAt,
	}
	if seed.Revealed() {
		resp.ServerSeed = seed.ServerSeed
	}
	return resp
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req fairness.VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	game, err := fairness.NormalizeGameType(string(req.GameType))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.GameType = game
	outcome, err := fairness.Verify(req)
	if err != nil {
		if errors.Is(err, fairness.ErrCommitmentMismatch) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleActiveSeed(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	seed, err := s.seeds.GetActiveSeed(userID)
	if err != nil {
		s.logger.Error("active seed lookup failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "seed lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, seedToResponse(seed))
}

type rotateSeedRequest struct {
	UserID     string `json:"userId"`
	ClientSeed string `json:"clientSeed,omitempty"`
}

type rotateSeedResponse struct {
	Revealed seedResponse `json:"revealed"`
	Next     seedResponse `json:"next"`
}

func (s *Server) handleRotateSeed(w http.ResponseWriter, r *http.Request) {
	var req rotateSeedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	revealed, next, err := s.seeds.RotateSeed(req.UserID, req.ClientSeed)
	if err != nil {
		if errors.Is(err, seeds.ErrSeedIntegrity) {
			s.logger.Error("seed integrity violation", "user", req.UserID)
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rotateSeedResponse{
		Revealed: seedToResponse(revealed),
		Next:     seedToResponse(next),
	})
}

func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	view, err := s.rounds.CurrentRound()
	if err != nil {
		if errors.Is(err, round.ErrNoRound) {
			writeError(w, http.StatusNotFound, "no round in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "round lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRoundByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.rounds.RoundByID(id)
	if err != nil {
		if errors.Is(err, round.ErrNoRound) {
			writeError(w, http.StatusNotFound, "unknown round")
			return
		}
		s.logger.Error("round lookup failed", "round", id, "err", err)
		writeError(w, http.StatusInternalServerError, "round lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type placeBetRequest struct {
	UserID      string  `json:"userId"`
	Stake       int64   `json:"stake"`
	AutoCashout float64 `json:"autoCashout,omitempty"`
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	bet, err := s.rounds.PlaceBet(req.UserID, req.Stake, req.AutoCashout)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, round.ErrBetsClosed), errors.Is(err, round.ErrDuplicateBet):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, round.ErrNoRound):
			writeError(w, http.StatusNotFound, "no round in progress")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

type cashoutRequest struct {
	UserID     string  `json:"userId"`
	Multiplier float64 `json:"multiplier"`
}

func (s *Server) handleCashout(w http.ResponseWriter, r *http.Request) {
	var req cashoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}
	bet, err := s.rounds.Cashout(req.UserID, req.Multiplier)
	if err != nil {
		switch {
		case errors.Is(err, round.ErrRoundNotRunning), errors.Is(err, round.ErrBetNotActive):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, round.ErrBetNotFound), errors.Is(err, round.ErrNoRound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, round.ErrMultiplierNotReached):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

type walletResponse struct {
	UserID          string `json:"userId"`
	Real            int64  `json:"real"`
	Bonus           int64  `json:"bonus"`
	Locked          int64  `json:"locked"`
	Total           int64  `json:"total"`
	LifetimeWagered int64  `json:"lifetimeWagered"`
	LifetimeWon     int64  `json:"lifetimeWon"`
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	wallet, err := s.ledger.Balance(userID)
	if err != nil {
		s.logger.Error("wallet lookup failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "wallet lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		UserID:          wallet.UserID,
		Real:            wallet.Real,
		Bonus:           wallet.Bonus,
		Locked:          wallet.Locked,
		Total:           wallet.Total(),
		LifetimeWagered: wallet.LifetimeWagered,
		LifetimeWon:     wallet.LifetimeWon,
	})
}
