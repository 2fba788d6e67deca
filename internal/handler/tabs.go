package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lappka/lappka/internal/categorize"
	"github.com/lappka/lappka/internal/expert"
	"github.com/lappka/lappka/internal/handler/views"
	appI18n "github.com/lappka/lappka/internal/i18n"
	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/llm"
	"github.com/lappka/lappka/internal/llm/prompts"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/modules"
	"github.com/lappka/lappka/internal/moodle"
	"github.com/lappka/lappka/internal/questions"
	"github.com/lappka/lappka/internal/report"
)

// tabBuilder fills the content of one module's tab.
type tabBuilder func(h *Handler, r *http.Request, ds *model.Dataset, page *views.DatasetPage) error

var tabBuilders = map[string]tabBuilder{
	modules.Questions:  (*Handler).questionsTab,
	modules.IRT:        (*Handler).irtTab,
	modules.Expert:     (*Handler).expertTab,
	modules.Categorize: (*Handler).categorizeTab,
}

// datasetPage builds the tab bar for ds with moduleID active and renders that
// module's content.
func (h *Handler) datasetPage(r *http.Request, ds *model.Dataset, moduleID string) (*views.DatasetPage, error) {
	page := &views.DatasetPage{Dataset: ds, Active: moduleID}
	for _, m := range h.modules.Enabled() {
		page.Tabs = append(page.Tabs, views.Tab{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Active:      m.ID == moduleID,
		})
	}
	build, ok := tabBuilders[moduleID]
	if !ok {
		return nil, fmt.Errorf("no renderer for module %q", moduleID)
	}
	if err := build(h, r, ds, page); err != nil {
		return nil, fmt.Errorf("module %s: %w", moduleID, err)
	}
	return page, nil
}

func (h *Handler) handleModule(w http.ResponseWriter, r *http.Request) {
	moduleID := chi.URLParam(r, "module")
	if m, ok := h.modules.Lookup(moduleID); !ok || !m.Enabled {
		http.NotFound(w, r)
		return
	}
	ds, ok := h.loadDataset(w, r)
	if !ok {
		return
	}
	page, err := h.datasetPage(r, ds, moduleID)
	if err != nil {
		slog.Error("failed to build tab", "dataset", ds.ID, "module", moduleID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.renderDataset(w, r, http.StatusOK, page)
}

func (h *Handler) questionsTab(r *http.Request, ds *model.Dataset, page *views.DatasetPage) error {
	qs := ds.Questions
	f := questions.FilterFromQuery(r.URL.Query(), qs)
	page.Questions = &views.QuestionsView{
		Filter:       f,
		Types:        questions.Types(qs),
		MaxAttempts:  questions.MaxAttempts(qs),
		Total:        len(model.Subquestions(qs)),
		Questions:    questions.Apply(qs, f),
		Distribution: questions.Distribution(qs, f.Type),
	}
	return nil
}

func (h *Handler) irtTab(_ *http.Request, ds *model.Dataset, page *views.DatasetPage) error {
	page.IRT = &views.IRTView{
		Map:     irt.BuildMap(ds.Questions, nil, irt.NewSampler(ds.SHA256)),
		Summary: irt.Summarize(ds.Questions),
		Spreads: irt.DifficultyByType(ds.Questions),
	}
	return nil
}

func (h *Handler) analyze(ds *model.Dataset) expert.Analysis {
	return expert.Analyze(ds.Questions, nil, irt.NewSampler(ds.SHA256), expert.DefaultTargets())
}

// adviceVariant picks the requested commentary variant, falling back to the
// configured one.
func (h *Handler) adviceVariant(v string) prompts.Variant {
	if prompts.IsValidVariant(v) {
		return prompts.Variant(v)
	}
	if prompts.IsValidVariant(h.config.AdviceVariant) {
		return prompts.Variant(h.config.AdviceVariant)
	}
	return prompts.VariantBrief
}

func (h *Handler) expertTab(r *http.Request, ds *model.Dataset, page *views.DatasetPage) error {
	variant := h.adviceVariant(r.URL.Query().Get("variant"))
	v := &views.ExpertView{
		Analysis:   h.analyze(ds),
		LLMEnabled: h.llm.Enabled(),
		Variant:    string(variant),
		Variants:   []string{string(prompts.VariantBrief), string(prompts.VariantDetailed)},
	}
	if v.LLMEnabled {
		advice, err := h.store.GetAdvice(ds.ID, string(variant))
		if err != nil {
			return err
		}
		v.Advice = advice
	}
	page.Expert = v
	return nil
}

func (h *Handler) categorizeTab(_ *http.Request, ds *model.Dataset, page *views.DatasetPage) error {
	bank, err := h.store.LatestBank(ds.ID)
	if err != nil {
		return err
	}
	v := &views.CategorizeView{Bank: bank}
	if bank != nil {
		res := categorize.Categorize(bank.Questions, ds.Questions, categorize.Options{})
		v.Result = &res
	}
	page.Categorize = v
	return nil
}

func (h *Handler) handleUploadBank(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.loadDataset(w, r)
	if !ok {
		return
	}

	name, data, err := readUpload(r)
	var bank *model.Bank
	if err == nil {
		bank, err = moodle.LoadBank(name, data)
	}
	if err != nil {
		slog.Warn("failed to read question bank", "dataset", ds.ID, "filename", name, "error", err)
		page, perr := h.datasetPage(r, ds, modules.Categorize)
		if perr != nil {
			http.Error(w, perr.Error(), http.StatusInternalServerError)
			return
		}
		page.Error = appI18n.Td(r.Context(), "BankUploadFailed", map[string]any{"Error": err.Error()})
		h.renderDataset(w, r, http.StatusBadRequest, page)
		return
	}

	bank.DatasetID = ds.ID
	saved, err := h.store.SaveBank(bank)
	if err != nil {
		slog.Error("failed to save bank", "dataset", ds.ID, "error", err)
		http.Error(w, "failed to save question bank", http.StatusInternalServerError)
		return
	}
	slog.Info("question bank uploaded", "dataset", ds.ID, "bank", saved.ID, "questions", len(saved.Questions))
	http.Redirect(w, r, h.path("/datasets/"+ds.ID+"/"+modules.Categorize), http.StatusSeeOther)
}

func (h *Handler) handleExportGIFT(w http.ResponseWriter, r *http.Request) {
	bankID := chi.URLParam(r, "bankID")
	bank, err := h.store.GetBank(bankID)
	if err != nil {
		slog.Error("failed to get bank", "bank", bankID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if bank == nil {
		http.NotFound(w, r)
		return
	}
	ds, err := h.store.GetDataset(bank.DatasetID)
	if err != nil {
		slog.Error("failed to get dataset", "bank", bankID, "dataset", bank.DatasetID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ds == nil {
		http.NotFound(w, r)
		return
	}

	res := categorize.Categorize(bank.Questions, ds.Questions, categorize.Options{})
	out := categorize.GenerateGIFT(bank.BaseCategory, res)

	name := exportName(bank.Filename)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		name, url.PathEscape(name)))
	if _, err := w.Write([]byte(out)); err != nil {
		slog.Error("write GIFT export", "bank", bankID, "error", err)
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.loadDataset(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report.Build(ds, expert.DefaultTargets())); err != nil {
		slog.Error("encode report", "dataset", ds.ID, "error", err)
	}
}

func (h *Handler) handleAdvice(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.loadDataset(w, r)
	if !ok {
		return
	}
	variant := h.adviceVariant(r.FormValue("variant"))
	target := h.path("/datasets/" + ds.ID + "/" + modules.Expert + "?variant=" + string(variant))

	if !h.llm.Enabled() {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	cached, err := h.store.GetAdvice(ds.ID, string(variant))
	if err != nil {
		slog.Error("failed to read advice", "dataset", ds.ID, "error", err)
	}
	if cached != "" && r.FormValue("refresh") == "" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	ctx := r.Context()
	data := llm.AdviceData(h.analyze(ds), languageName(h.config.Lang), appI18n.Translator(ctx))
	text, err := h.llm.Advise(ctx, variant, data)
	if err != nil {
		slog.Error("LLM advice failed", "dataset", ds.ID, "variant", variant, "error", err)
		page, perr := h.datasetPage(r, ds, modules.Expert)
		if perr != nil {
			http.Error(w, perr.Error(), http.StatusInternalServerError)
			return
		}
		page.Error = appI18n.Td(ctx, "AdviceFailed", map[string]any{"Error": err.Error()})
		status := http.StatusBadGateway
		if errors.Is(err, llm.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		h.renderDataset(w, r, status, page)
		return
	}
	if err := h.store.SetAdvice(ds.ID, string(variant), text); err != nil {
		slog.Error("failed to cache advice", "dataset", ds.ID, "error", err)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// exportName derives the download name of a categorised bank from the
// uploaded file name.
func exportName(uploaded string) string {
	base := strings.TrimSuffix(uploaded, filepath.Ext(uploaded))
	base = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '/' || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "" {
		base = "bank"
	}
	return base + "_categorized.gift"
}

func languageName(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "ru") {
		return "Russian"
	}
	return "English"
}
