package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lappka/lappka/internal/handler/views"
	appI18n "github.com/lappka/lappka/internal/i18n"
	"github.com/lappka/lappka/internal/llm"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/modules"
	"github.com/lappka/lappka/internal/moodle"
	"github.com/lappka/lappka/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	llm     *llm.Client
	modules *modules.Table
	config  model.AppConfig
}

// New creates a new Handler. A nil module table means the embedded default.
func New(s *store.Store, l *llm.Client, mods *modules.Table, cfg model.AppConfig) (*Handler, error) {
	if s == nil {
		return nil, errors.New("store is required")
	}
	if mods == nil {
		mods = modules.Default()
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	return &Handler{store: s, llm: l, modules: mods, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(h.limitBody)
		r.Use(h.csrfMiddleware)

		r.Get("/", h.handleIndex)
		r.Post("/logout", h.handleLogout)
		r.Get("/password", h.handlePasswordPage)
		r.Post("/password", h.handleChangePassword)
		r.Post("/datasets", h.handleUpload)
		r.Get("/datasets/{id}", h.handleDataset)
		r.Get("/datasets/{id}/report.json", h.handleReport)
		r.Post("/datasets/{id}/delete", h.handleDeleteDataset)
		r.Post("/datasets/{id}/categorize", h.handleUploadBank)
		r.Post("/datasets/{id}/advice", h.handleAdvice)
		r.Get("/datasets/{id}/{module}", h.handleModule)
		r.Get("/banks/{bankID}/export.gift", h.handleExportGIFT)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleAdminUsersPage)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

// BasePathMiddleware stores the configured URL prefix in the request context
// so views can build links.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// limitBody caps request bodies at the configured upload size.
func (h *Handler) limitBody(next http.Handler) http.Handler {
	limit := int64(h.config.MaxUploadMB) << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, "")
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	datasets, err := h.store.ListDatasets()
	if err != nil {
		slog.Error("failed to list datasets", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	count, err := h.store.DatasetCount()
	if err != nil {
		slog.Error("failed to count datasets", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.IndexPage(datasets, count, errMsg).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// readUpload returns the name and content of the multipart file field "file".
func readUpload(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(r)
	if err != nil {
		h.renderIndex(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "UploadMissing"))
		return
	}

	ds, err := moodle.LoadDataset(name, data)
	if err != nil {
		slog.Warn("failed to parse upload", "filename", name, "error", err)
		h.renderIndex(w, r, http.StatusBadRequest, appI18n.Td(r.Context(), "UploadFailed", map[string]any{
			"File":  name,
			"Error": err.Error(),
		}))
		return
	}

	stored, created, err := h.store.SaveDataset(ds)
	if err != nil {
		slog.Error("failed to save dataset", "filename", name, "error", err)
		http.Error(w, "failed to save dataset", http.StatusInternalServerError)
		return
	}
	slog.Info("dataset uploaded", "id", stored.ID, "filename", name, "created", created,
		"user", model.UserFromContext(r.Context()).Username)

	http.Redirect(w, r, h.path("/datasets/"+stored.ID), http.StatusSeeOther)
}

// loadDataset fetches the dataset named in the URL, replying 404 when it does
// not exist.
func (h *Handler) loadDataset(w http.ResponseWriter, r *http.Request) (*model.Dataset, bool) {
	ds, err := h.store.GetDataset(chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("failed to get dataset", "id", chi.URLParam(r, "id"), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if ds == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return ds, true
}

func (h *Handler) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.loadDataset(w, r)
	if !ok {
		return
	}
	if enabled := h.modules.Enabled(); len(enabled) > 0 {
		http.Redirect(w, r, h.path("/datasets/"+ds.ID+"/"+enabled[0].ID), http.StatusSeeOther)
		return
	}
	h.renderDataset(w, r, http.StatusOK, &views.DatasetPage{Dataset: ds})
}

func (h *Handler) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteDataset(id); err != nil {
		slog.Error("failed to delete dataset", "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("dataset deleted", "id", id)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) renderDataset(w http.ResponseWriter, r *http.Request, status int, page *views.DatasetPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.DatasetView(*page).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}
