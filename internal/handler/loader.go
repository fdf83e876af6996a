package handler

import (
	"fmt"
	"net/http"

	"github.com/companin/widget/internal/loader"
	"github.com/companin/widget/internal/model"
)

// LoaderHandler serves the loader scripts host pages include.
type LoaderHandler struct {
	scripts map[model.Variant][]byte
}

// NewLoaderHandler renders both loader scripts up front.
func NewLoaderHandler(cfg loader.ScriptConfig) (*LoaderHandler, error) {
	h := &LoaderHandler{scripts: make(map[model.Variant][]byte)}
	for _, v := range []model.Variant{model.VariantSession, model.VariantDocs} {
		script, err := loader.Render(v, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s loader: %w", v, err)
		}
		h.scripts[v] = script
	}
	return h, nil
}

// Widget handles GET /widget.js
func (h *LoaderHandler) Widget(w http.ResponseWriter, r *http.Request) {
	h.serve(w, model.VariantSession)
}

// DocsWidget handles GET /docs-widget.js
func (h *LoaderHandler) DocsWidget(w http.ResponseWriter, r *http.Request) {
	h.serve(w, model.VariantDocs)
}

func (h *LoaderHandler) serve(w http.ResponseWriter, v model.Variant) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(h.scripts[v])
}
