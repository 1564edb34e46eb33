package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/electionmap/internal/choropleth"
	"github.com/rewired-gh/electionmap/internal/logger"
	"github.com/rewired-gh/electionmap/internal/models"
	"github.com/rewired-gh/electionmap/internal/panel"
)

type legendItem struct {
	Label string
	Color string
}

type panelView struct {
	ID      string
	Title   string
	Kind    panel.Kind
	Map     bool
	Loaded  bool
	Harris  string
	Trump   string
	SVG     template.HTML
	Error   string
	Legend  []legendItem
	Palette choropleth.Palette
}

func newPanelView(p *panel.Panel) panelView {
	snap := p.Snapshot()
	v := panelView{
		ID:      snap.ID,
		Title:   snap.Title,
		Kind:    snap.Kind,
		Map:     snap.Kind == panel.KindGeo || snap.Kind == panel.KindGrid,
		Loaded:  snap.Loaded,
		Error:   snap.Error,
		Palette: choropleth.DefaultPalette,
	}
	if v.Map {
		v.Harris = humanize.Comma(int64(snap.Totals.For(models.Harris)))
		v.Trump = humanize.Comma(int64(snap.Totals.For(models.Trump)))
		v.Legend = []legendItem{
			{Label: string(models.Harris), Color: v.Palette.Harris},
			{Label: string(models.Trump), Color: v.Palette.Trump},
		}
		if snap.Kind == panel.KindGeo {
			v.Legend = append(v.Legend, legendItem{Label: "No data", Color: v.Palette.NoData})
		}
	}
	if snap.Loaded {
		var buf bytes.Buffer
		if err := p.WriteSVG(&buf, 0); err != nil {
			v.Error = err.Error()
		} else {
			// Scene and chart writers escape every text node and attribute.
			v.SVG = template.HTML(buf.String())
		}
	} else if v.Error == "" {
		v.Error = "Loading..."
	}
	return v
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	panels := s.registry.All()
	views := make([]panelView, 0, len(panels))
	for _, p := range panels {
		views = append(views, newPanelView(p))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, views); err != nil {
		logger.Error("Failed to render page: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Election Simulation</title>
<style>
body { font-family: sans-serif; margin: 0; padding: 20px; background: #f9fafb; color: #111827; }
.panel { max-width: 1000px; margin: 0 auto 32px; background: #fff; border-radius: 8px; padding: 20px; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
.panel h2 { text-align: center; margin: 0 0 16px; }
.counter { display: flex; justify-content: center; gap: 48px; margin-bottom: 16px; }
.counter .name { font-weight: bold; text-align: center; }
.counter .count { font-size: 2em; font-weight: bold; text-align: center; }
.canvas { position: relative; width: 100%; }
.legend { display: flex; justify-content: center; gap: 24px; margin-top: 16px; }
.legend .box { display: inline-block; width: 16px; height: 16px; margin-right: 8px; vertical-align: middle; }
.error { color: #dc2626; text-align: center; padding: 20px; }
#tooltip { position: fixed; visibility: hidden; background: #fff; border: 1px solid #ddd; border-radius: 4px; padding: 8px; pointer-events: none; font-size: 13px; white-space: pre-line; box-shadow: 0 2px 4px rgba(0,0,0,.1); }
</style>
</head>
<body>
{{range .}}
<section class="panel" id="panel-{{.ID}}" data-panel="{{.ID}}">
  <h2>{{.Title}}</h2>
  {{if and .Map .Loaded}}
  <div class="counter">
    <div><div class="name" style="color: {{.Palette.Harris}}">Harris</div><div class="count">{{.Harris}}</div></div>
    <div><div class="name" style="color: {{.Palette.Trump}}">Trump</div><div class="count">{{.Trump}}</div></div>
  </div>
  {{end}}
  {{if .Error}}
  <div class="error">{{.Error}}</div>
  {{else}}
  <div class="canvas">{{.SVG}}</div>
  {{end}}
  {{if and .Legend .Loaded}}
  <div class="legend">
    {{range .Legend}}<div><span class="box" style="background-color: {{.Color}}"></span><span>{{.Label}}</span></div>{{end}}
  </div>
  {{end}}
</section>
{{end}}
<div id="tooltip"></div>
<script>
(function () {
  var tip = document.getElementById('tooltip');
  document.addEventListener('mouseover', function (e) {
    var el = e.target.closest('[data-tooltip]');
    if (!el) return;
    tip.textContent = el.getAttribute('data-tooltip');
    tip.style.visibility = 'visible';
  });
  document.addEventListener('mousemove', function (e) {
    if (tip.style.visibility !== 'visible') return;
    tip.style.left = (e.clientX + 10) + 'px';
    tip.style.top = (e.clientY + 10) + 'px';
  });
  document.addEventListener('mouseout', function (e) {
    if (e.target.closest('[data-tooltip]')) tip.style.visibility = 'hidden';
  });

  var timer = null;
  function redraw() {
    document.querySelectorAll('[data-panel]').forEach(function (section) {
      var id = section.getAttribute('data-panel');
      var canvas = section.querySelector('.canvas');
      if (!canvas) return;
      var width = Math.round(canvas.clientWidth);
      if (width <= 0) return;
      fetch('/api/panels/' + encodeURIComponent(id) + '/resize', {
        method: 'POST',
        headers: {'Content-Type': 'application/json'},
        body: JSON.stringify({width: width})
      }).then(function () {
        return fetch('/panels/' + encodeURIComponent(id) + '.svg?width=' + width);
      }).then(function (resp) {
        return resp.ok ? resp.text() : null;
      }).then(function (svg) {
        if (svg) canvas.innerHTML = svg;
      });
    });
  }
  window.addEventListener('resize', function () {
    clearTimeout(timer);
    timer = setTimeout(redraw, 150);
  });
})();
</script>
</body>
</html>
`))
