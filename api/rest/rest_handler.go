package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/service"
	"github.com/zlnvch/layerdeck/store"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type loginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type loginResponse struct {
	Username string `json:"username"`
	Id       string `json:"id"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	owner, token, err := h.Service.Login(r.Context(), req.Provider, req.Code)
	if err != nil {
		log.Printf("Login failed: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp := loginResponse{
		Username: owner.Username,
		Id:       owner.Id,
		Provider: owner.Provider,
		Token:    token,
	}
	h.sendResponse(w, resp)
}

type createDesignRequest struct {
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// HandleDesigns serves /designs
func (h *Handler) HandleDesigns(w http.ResponseWriter, r *http.Request) {
	owner, ctx, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		designs, err := h.Service.ListDesigns(ctx, owner)
		if err != nil {
			h.sendError(w, "list designs", err)
			return
		}
		h.sendResponse(w, designs)

	case http.MethodPost:
		var req createDesignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		design, err := h.Service.CreateDesign(ctx, owner, req.Title, req.Width, req.Height)
		if err != nil {
			h.sendError(w, "create design", err)
			return
		}
		h.sendStatus(w, http.StatusCreated, design)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

// HandleDesign serves /designs/{id}
func (h *Handler) HandleDesign(w http.ResponseWriter, r *http.Request) {
	owner, ctx, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	designId := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		design, err := h.Service.LoadDesign(ctx, designId)
		if err != nil {
			h.sendError(w, "load design", err)
			return
		}
		h.sendResponse(w, design)

	case http.MethodDelete:
		if err := h.Service.DeleteDesign(ctx, owner, designId); err != nil {
			h.sendError(w, "delete design", err)
			return
		}
		h.sendResponse(w, successResponse{Success: true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleLayers serves /layers
func (h *Handler) HandleLayers(w http.ResponseWriter, r *http.Request) {
	_, ctx, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var spec models.LayerSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	layer, err := h.Service.CreateLayer(ctx, spec)
	if err != nil {
		h.sendError(w, "create layer", err)
		return
	}
	h.sendStatus(w, http.StatusCreated, layer)
}

// HandleLayer serves /layers/{id}
func (h *Handler) HandleLayer(w http.ResponseWriter, r *http.Request) {
	_, ctx, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	layerId := r.PathValue("id")

	switch r.Method {
	case http.MethodPatch:
		var patch models.LayerPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		layer, err := h.Service.UpdateLayer(ctx, layerId, patch)
		if err != nil {
			h.sendError(w, "update layer", err)
			return
		}
		h.sendResponse(w, layer)

	case http.MethodDelete:
		if err := h.Service.DeleteLayer(ctx, layerId); err != nil {
			h.sendError(w, "delete layer", err)
			return
		}
		h.sendResponse(w, successResponse{Success: true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAssets serves /assets. Uploads are multipart with the image in the
// "file" field.
func (h *Handler) HandleAssets(w http.ResponseWriter, r *http.Request) {
	owner, ctx, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		assets, err := h.Service.ListAssets(ctx, owner)
		if err != nil {
			h.sendError(w, "list assets", err)
			return
		}
		h.sendResponse(w, assets)

	case http.MethodPost:
		// Leave room for the multipart envelope around the file
		r.Body = http.MaxBytesReader(w, r.Body, h.Service.Limits.MaxUploadBytes+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file provided", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "failed to read file", http.StatusBadRequest)
			return
		}

		asset, err := h.Service.UploadAsset(ctx, models.Upload{
			Filename: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
		if err != nil {
			h.sendError(w, "upload asset", err)
			return
		}
		h.sendStatus(w, http.StatusCreated, asset)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// authenticate resolves the bearer token and scopes the request context to
// its owner. It writes the 401 itself.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (models.Owner, context.Context, bool) {
	token := h.getTokenFromAuthHeader(r)
	owner, err := h.Service.AuthenticateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return models.Owner{}, nil, false
	}
	return owner, service.WithOwner(r.Context(), owner), true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrItemNotFound), errors.Is(err, store.ErrConditionFailed):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLayerLocked), errors.Is(err, service.ErrTooMany):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) sendError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Failed to %s: %v", op, err)
		http.Error(w, "failed to "+op, status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	h.sendStatus(w, http.StatusOK, resp)
}

func (h *Handler) sendStatus(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}

// RegisterRoutes mounts the REST endpoints. Uploaded files are served from
// uploadDir under service.UploadsPath.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, uploadDir string) {
	mux.HandleFunc("/login", h.HandleLogin)
	mux.HandleFunc("/designs", h.HandleDesigns)
	mux.HandleFunc("/designs/{id}", h.HandleDesign)
	mux.HandleFunc("/layers", h.HandleLayers)
	mux.HandleFunc("/layers/{id}", h.HandleLayer)
	mux.HandleFunc("/assets", h.HandleAssets)
	mux.Handle(service.UploadsPath, http.StripPrefix(service.UploadsPath, http.FileServer(http.Dir(uploadDir))))
}
