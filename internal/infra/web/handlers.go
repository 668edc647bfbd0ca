package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"client-manager-bot/internal/domain"
	"client-manager-bot/internal/domain/model"
	"client-manager-bot/internal/flow"
)

const dateLayout = "2006-01-02"

// ===== DTOs =====

type clientJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	WhatsApp     string `json:"whatsapp,omitempty"`
	Email        string `json:"email,omitempty"`
	GeneralNotes string `json:"general_notes,omitempty"`
	OwnerUserID  int64  `json:"owner_user_id"`
}

type productJSON struct {
	ID              int64  `json:"id"`
	ClientID        string `json:"client_id"`
	ProductName     string `json:"product_name"`
	ContractDate    string `json:"contract_date"`
	ExpiryDate      string `json:"expiry_date"`
	NoticeDate      string `json:"notice_date"`
	Status          string `json:"status"`
	ProductNotes    string `json:"product_notes,omitempty"`
	ServiceUsername string `json:"service_username,omitempty"`
}

func toClientJSON(c *model.Client) clientJSON {
	return clientJSON{
		ID:           c.ID,
		Name:         c.Name,
		WhatsApp:     c.WhatsApp,
		Email:        c.Email,
		GeneralNotes: c.GeneralNotes,
		OwnerUserID:  c.OwnerUserID,
	}
}

func toProductJSON(p *model.ClientProduct) productJSON {
	return productJSON{
		ID:              p.ID,
		ClientID:        p.ClientID,
		ProductName:     p.ProductName,
		ContractDate:    p.ContractDate.Format(dateLayout),
		ExpiryDate:      p.ExpiryDate.Format(dateLayout),
		NoticeDate:      p.NoticeDate.Format(dateLayout),
		Status:          string(p.Status),
		ProductNotes:    p.ProductNotes,
		ServiceUsername: p.ServiceUsername,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrFieldNotUpdatable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// ===== auth =====

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !s.passwordMatches(req.Password) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("mint session token")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ===== stats =====

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.stats.Totals(r.Context(), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// ===== clients =====

func (s *Server) handleClientsList(w http.ResponseWriter, r *http.Request) {
	clients, err := s.clients.List(r.Context(), r.URL.Query().Get("search"), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]clientJSON, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientJSON(c))
	}
	writeJSON(w, http.StatusOK, struct {
		Data  []clientJSON `json:"data"`
		Total int          `json:"total"`
	}{out, len(out)})
}

type clientCreateRequest struct {
	Name         string `json:"name"`
	WhatsApp     string `json:"whatsapp"`
	Email        string `json:"email"`
	GeneralNotes string `json:"general_notes"`
	Product      struct {
		ProductName     string `json:"product_name"`
		DurationDays    int    `json:"duration_days"`
		ProductNotes    string `json:"product_notes"`
		ServiceUsername string `json:"service_username"`
		ServicePassword string `json:"service_password"`
	} `json:"product"`
}

func (s *Server) handleClientCreate(w http.ResponseWriter, r *http.Request) {
	var req clientCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Product.ProductName == "" || req.Product.DurationDays <= 0 {
		http.Error(w, "name, product.product_name and product.duration_days are required", http.StatusUnprocessableEntity)
		return
	}
	whatsapp := ""
	if req.WhatsApp != "" {
		normalized, ok := flow.NormalizeWhatsApp(req.WhatsApp)
		if !ok {
			http.Error(w, "whatsapp is not a valid Argentine number", http.StatusUnprocessableEntity)
			return
		}
		whatsapp = normalized
	}

	c := &model.Client{
		ID:           model.NewClientID(),
		Name:         req.Name,
		WhatsApp:     whatsapp,
		Email:        req.Email,
		GeneralNotes: req.GeneralNotes,
		OwnerUserID:  s.ownerID,
	}
	contract, expiry, notice := model.ProductDates(time.Now(), req.Product.DurationDays)
	p := &model.ClientProduct{
		ProductName:     req.Product.ProductName,
		ContractDate:    contract,
		ExpiryDate:      expiry,
		NoticeDate:      notice,
		Status:          model.ProductStatusActive,
		ProductNotes:    req.Product.ProductNotes,
		ServiceUsername: req.Product.ServiceUsername,
		AddedByUserID:   s.ownerID,
	}
	if req.Product.ServicePassword != "" {
		encrypted, err := s.enc.Encrypt(req.Product.ServicePassword)
		if err != nil {
			s.log.Error().Err(err).Msg("encrypt service password")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		p.ServicePassword = encrypted
	}

	if err := s.clients.CreateWithFirstProduct(r.Context(), c, p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Client  clientJSON  `json:"client"`
		Product productJSON `json:"product"`
	}{toClientJSON(c), toProductJSON(p)})
}

func (s *Server) handleClientGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.clients.Find(r.Context(), id, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	products, err := s.clients.Products(r.Context(), c.ID, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, toProductJSON(p))
	}
	writeJSON(w, http.StatusOK, struct {
		Client   clientJSON    `json:"client"`
		Products []productJSON `json:"products"`
	}{toClientJSON(c), out})
}

type fieldUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleClientUpdate(w http.ResponseWriter, r *http.Request) {
	var req fieldUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	field, ok := model.ParseClientField(req.Field)
	if !ok {
		http.Error(w, "field is not updatable", http.StatusUnprocessableEntity)
		return
	}
	value := req.Value
	if field == model.ClientFieldWhatsApp && value != "" {
		normalized, ok := flow.NormalizeWhatsApp(value)
		if !ok {
			http.Error(w, "whatsapp is not a valid Argentine number", http.StatusUnprocessableEntity)
			return
		}
		value = normalized
	}
	if err := s.clients.UpdateClientField(r.Context(), chi.URLParam(r, "id"), field, value, nil); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClientDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.clients.DeleteClient(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== products =====

type productAddRequest struct {
	ProductName     string `json:"product_name"`
	DurationDays    int    `json:"duration_days"`
	ProductNotes    string `json:"product_notes"`
	ServiceUsername string `json:"service_username"`
	ServicePassword string `json:"service_password"`
}

func (s *Server) handleProductAdd(w http.ResponseWriter, r *http.Request) {
	var req productAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductName == "" || req.DurationDays <= 0 {
		http.Error(w, "product_name and duration_days are required", http.StatusUnprocessableEntity)
		return
	}

	c, err := s.clients.Find(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	contract, expiry, notice := model.ProductDates(time.Now(), req.DurationDays)
	p := &model.ClientProduct{
		ClientID:        c.ID,
		ProductName:     req.ProductName,
		ContractDate:    contract,
		ExpiryDate:      expiry,
		NoticeDate:      notice,
		Status:          model.ProductStatusActive,
		ProductNotes:    req.ProductNotes,
		ServiceUsername: req.ServiceUsername,
		AddedByUserID:   s.ownerID,
	}
	if req.ServicePassword != "" {
		encrypted, err := s.enc.Encrypt(req.ServicePassword)
		if err != nil {
			s.log.Error().Err(err).Msg("encrypt service password")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		p.ServicePassword = encrypted
	}
	if err := s.clients.AddProduct(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductJSON(p))
}

func productID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		http.Error(w, "Invalid product id", http.StatusBadRequest)
		return
	}
	var req fieldUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	field, ok := model.ParseProductField(req.Field)
	if !ok {
		http.Error(w, "field is not updatable", http.StatusUnprocessableEntity)
		return
	}
	value := req.Value
	if field == model.ProductFieldServicePassword && value != "" {
		encrypted, err := s.enc.Encrypt(value)
		if err != nil {
			s.log.Error().Err(err).Msg("encrypt service password")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		value = encrypted
	}
	if err := s.clients.UpdateProductField(r.Context(), id, field, value, nil); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		http.Error(w, "Invalid product id", http.StatusBadRequest)
		return
	}
	deleted, err := s.clients.DeleteProduct(r.Context(), id, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProductRenew(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		http.Error(w, "Invalid product id", http.StatusBadRequest)
		return
	}
	var req struct {
		DurationDays int `json:"duration_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.clients.RenewProduct(r.Context(), id, req.DurationDays, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductJSON(p))
}

// ===== backup =====

// handleBackupExport dumps every client with its products in the restore file
// format. Passwords stay encrypted; the restore flow carries them verbatim.
func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	clients, err := s.clients.List(r.Context(), "", nil)
	if err != nil {
		writeError(w, err)
		return
	}
	backup := make([]model.BackupClient, 0, len(clients))
	for _, c := range clients {
		products, err := s.clients.Products(r.Context(), c.ID, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		entry := model.BackupClient{
			ID:           c.ID,
			Name:         c.Name,
			WhatsApp:     c.WhatsApp,
			Email:        c.Email,
			GeneralNotes: c.GeneralNotes,
		}
		for _, p := range products {
			entry.Products = append(entry.Products, model.BackupProduct{
				ProductName:     p.ProductName,
				ContractDate:    p.ContractDate.Format(dateLayout),
				ExpiryDate:      p.ExpiryDate.Format(dateLayout),
				NoticeDate:      p.NoticeDate.Format(dateLayout),
				Status:          string(p.Status),
				ProductNotes:    p.ProductNotes,
				ServiceUsername: p.ServiceUsername,
				ServicePassword: p.ServicePassword,
			})
		}
		backup = append(backup, entry)
	}
	w.Header().Set("Content-Disposition", `attachment; filename="backup.json"`)
	writeJSON(w, http.StatusOK, backup)
}
