package httpapi

import (
	"encoding/base64"
	"net/http"

	"iconforge/pkg/ico"
	"iconforge/pkg/svgrender"
)

type generateSVGRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateSVG asks the chat backend for icon markup matching the prompt.
func (a *App) GenerateSVG(w http.ResponseWriter, r *http.Request) {
	if a.svg == nil {
		a.error(w, http.StatusServiceUnavailable, "svg generation is not configured")
		return
	}
	var req generateSVGRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "prompt is required")
		return
	}

	svg, err := a.svg.Generate(r.Context(), req.Prompt)
	if err != nil {
		a.error(w, http.StatusBadGateway, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]string{"svg": svg})
}

type renderSVGRequest struct {
	SVG        string `json:"svg"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
}

// RenderSVG rasterizes SVG markup and answers with the PNG bytes.
func (a *App) RenderSVG(w http.ResponseWriter, r *http.Request) {
	var req renderSVGRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.SVG == "" {
		a.error(w, http.StatusBadRequest, "svg is required")
		return
	}

	data, err := svgrender.Render([]byte(req.SVG), req.Width, req.Height, req.Background)
	if err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type buildICORequest struct {
	SVG        string `json:"svg"`
	PNGBase64  string `json:"png_base64"`
	Sizes      []int  `json:"sizes"`
	Background string `json:"background"`
}

// BuildICO assembles an ICO from either SVG markup or a base64 PNG.
func (a *App) BuildICO(w http.ResponseWriter, r *http.Request) {
	var req buildICORequest
	if !a.decode(w, r, &req) {
		return
	}

	var (
		data []byte
		err  error
	)
	switch {
	case req.SVG != "":
		data, err = ico.FromSVG([]byte(req.SVG), req.Sizes, req.Background)
	case req.PNGBase64 != "":
		var src []byte
		src, err = base64.StdEncoding.DecodeString(req.PNGBase64)
		if err != nil {
			a.error(w, http.StatusBadRequest, "png_base64 is not valid base64")
			return
		}
		data, err = ico.FromPNG(src, req.Sizes)
	default:
		a.error(w, http.StatusBadRequest, "svg or png_base64 is required")
		return
	}
	if err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/x-icon")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
