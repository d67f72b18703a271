package viz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"
)

// ErrImageExportUnavailable is returned by HTMLRenderer.ExportImage. Bitmap
// export happens in the browser through the page's PNG button.
var ErrImageExportUnavailable = errors.New("image export is performed by the browser page")

// compiledTemplate is parsed at init time to fail fast on template errors.
var compiledTemplate *template.Template

func init() {
	compiledTemplate = template.Must(template.New("viz").Parse(htmlTemplate))
}

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	Title   string
	Layout  string  // user-facing layout name
	Layouts Layouts // nil uses DefaultLayouts

	// Live pages talk to the gx server API: the toolbar changes filter and
	// layout, double-tap expands a node, tap selects it.
	Live          bool
	Filter        string
	FilterOptions []string
	Search        string
}

// DefaultOptions returns default HTML generation options.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{
		Title:   "Volunteer Graph Explorer",
		Layout:  DefaultLayout,
		Layouts: DefaultLayouts(),
	}
}

// templateData holds data for the HTML template.
type templateData struct {
	Title         string
	GraphJSON     template.JS
	Layout        string
	LayoutName    string
	LayoutNames   []string
	Live          bool
	Filter        string
	FilterOptions []string
	Search        string
}

// GenerateHTML generates a self-contained HTML page for the elements.
func GenerateHTML(els *Elements, opts HTMLOptions) (string, error) {
	if els == nil {
		return "", fmt.Errorf("elements cannot be nil")
	}

	layouts := opts.Layouts
	if layouts == nil {
		layouts = DefaultLayouts()
	}
	if err := layouts.Validate(opts.Layout); err != nil {
		return "", err
	}

	if els.IsEmpty() && !opts.Live {
		return generateEmptyHTML(), nil
	}

	graphJSON, err := els.ToCytoscapeJSON()
	if err != nil {
		return "", err
	}

	title := opts.Title
	if title == "" {
		title = DefaultOptions().Title
	}
	layoutName := opts.Layout
	if layoutName == "" {
		layoutName = DefaultLayout
	}

	data := templateData{
		Title:         title,
		GraphJSON:     template.JS(graphJSON),
		Layout:        layouts.Cytoscape(layoutName),
		LayoutName:    layoutName,
		LayoutNames:   layouts.Names(),
		Live:          opts.Live,
		Filter:        opts.Filter,
		FilterOptions: opts.FilterOptions,
		Search:        opts.Search,
	}

	var buf bytes.Buffer
	if err := compiledTemplate.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// HTMLRenderer renders elements as an explorer page. Each Render replaces
// the previous page; when an output writer is set the page is also written
// there.
type HTMLRenderer struct {
	opts HTMLOptions

	mu   sync.Mutex
	out  io.Writer
	last []byte
}

// NewHTMLRenderer creates a renderer. out may be nil.
func NewHTMLRenderer(out io.Writer, opts HTMLOptions) *HTMLRenderer {
	return &HTMLRenderer{opts: opts, out: out}
}

// Render builds the page for els with the given layout.
func (r *HTMLRenderer) Render(ctx context.Context, els Elements, layout string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := r.opts
	opts.Layout = layout
	page, err := GenerateHTML(&els, opts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = []byte(page)
	if r.out != nil {
		if _, err := io.WriteString(r.out, page); err != nil {
			return fmt.Errorf("writing page: %w", err)
		}
	}
	return nil
}

// Last returns the most recently rendered page.
func (r *HTMLRenderer) Last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.last)
}

// ExportImage always fails: the page exports PNGs client-side.
func (r *HTMLRenderer) ExportImage(context.Context, io.Writer) error {
	return ErrImageExportUnavailable
}

// generateEmptyHTML returns HTML for an empty graph state.
func generateEmptyHTML() string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Volunteer Graph - Empty</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      display: flex;
      justify-content: center;
      align-items: center;
      height: 100vh;
      margin: 0;
      background: #f5f5f5;
    }
    .empty-state {
      text-align: center;
      color: #666;
    }
    .empty-state h2 {
      margin-bottom: 0.5em;
      color: #333;
    }
    .empty-state code {
      background: #e0e0e0;
      padding: 2px 6px;
      border-radius: 3px;
    }
  </style>
</head>
<body>
  <div class="empty-state">
    <h2>No graph data</h2>
    <p>No nodes match the current filter.</p>
    <p>Load the graph with <code>gx load</code> or pick another filter.</p>
  </div>
</body>
</html>`
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <script src="https://unpkg.com/cytoscape@3/dist/cytoscape.min.js"></script>
  <style>
    * {
      box-sizing: border-box;
    }
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      padding: 0;
      background: #f5f5f5;
    }
    #toolbar {
      display: flex;
      gap: 12px;
      align-items: center;
      padding: 8px 12px;
      background: #fff;
      border-bottom: 1px solid #ddd;
      font-size: 13px;
    }
    #cy {
      width: 100%;
      height: calc(100vh - 44px);
      background: white;
    }
    #tooltip {
      position: absolute;
      display: none;
      background: white;
      border: 1px solid #ccc;
      border-radius: 4px;
      padding: 8px 12px;
      box-shadow: 0 2px 8px rgba(0,0,0,0.15);
      max-width: 300px;
      font-size: 13px;
      z-index: 1000;
      pointer-events: none;
    }
    #tooltip .type {
      font-size: 10px;
      text-transform: uppercase;
      color: #888;
      margin-bottom: 4px;
    }
    #tooltip .label {
      font-weight: bold;
      margin-bottom: 4px;
    }
    #tooltip .detail {
      color: #555;
      margin: 2px 0;
    }
  </style>
</head>
<body>
  <div id="toolbar">
    {{if .Live}}
    <label>Filter
      <select id="filter">
        <option value="all">all</option>
        {{range .FilterOptions}}<option value="{{.}}"{{if eq . $.Filter}} selected{{end}}>{{.}}</option>{{end}}
      </select>
    </label>
    <label>Layout
      <select id="layout">
        {{range .LayoutNames}}<option value="{{.}}"{{if eq . $.LayoutName}} selected{{end}}>{{.}}</option>{{end}}
      </select>
    </label>
    <input id="search" type="search" placeholder="Search labels" value="{{.Search}}">
    {{end}}
    <button id="export-png">Export PNG</button>
  </div>
  <div id="cy"></div>
  <div id="tooltip"></div>
  <script>
    (function() {
      const graphData = {{.GraphJSON}};
      const layout = "{{.Layout}}";
      const live = {{.Live}};

      const cy = cytoscape({
        container: document.getElementById('cy'),
        elements: graphData,
        style: [
          {
            selector: 'node',
            style: {
              'background-color': 'data(color)',
              'label': 'data(label)',
              'color': '#333',
              'font-size': '10px',
              'text-valign': 'bottom',
              'text-margin-y': '5px',
              'width': 'data(visualSize)',
              'height': 'data(visualSize)'
            }
          },
          {
            selector: 'edge',
            style: {
              'line-color': '#95A5A6',
              'target-arrow-color': '#95A5A6',
              'target-arrow-shape': 'triangle',
              'curve-style': 'bezier',
              'label': 'data(type)',
              'font-size': '8px',
              'width': 'mapData(weight, 0, 10, 1, 6)'
            }
          },
          {
            selector: 'node.matched',
            style: {
              'border-width': 4,
              'border-color': '#FFD700'
            }
          },
          {
            selector: '.highlighted',
            style: {
              'border-width': 3,
              'border-color': '#ff6b6b',
              'line-color': '#ff6b6b',
              'target-arrow-color': '#ff6b6b'
            }
          },
          {
            selector: 'node.dimmed',
            style: {
              'opacity': 0.3
            }
          },
          {
            selector: 'edge.dimmed',
            style: {
              'opacity': 0.2
            }
          }
        ],
        layout: {
          name: layout,
          animate: false,
          nodeRepulsion: 8000,
          idealEdgeLength: 100,
          edgeElasticity: 100
        }
      });

      const tooltip = document.getElementById('tooltip');

      function showTooltip(evt, content) {
        tooltip.innerHTML = content;
        tooltip.style.display = 'block';
        const pos = evt.renderedPosition || evt.position;
        tooltip.style.left = (pos.x + 15) + 'px';
        tooltip.style.top = (pos.y + 15 + 44) + 'px';
      }

      function hideTooltip() {
        tooltip.style.display = 'none';
      }

      function escapeHtml(str) {
        if (str === undefined || str === null) return '';
        return String(str).replace(/&/g, '&amp;')
                  .replace(/</g, '&lt;')
                  .replace(/>/g, '&gt;')
                  .replace(/"/g, '&quot;');
      }

      function getNodeTooltip(node) {
        const data = node.data();
        let html = '<div class="type">' + escapeHtml(data.type) + '</div>';
        html += '<div class="label">' + escapeHtml(data.label) + '</div>';
        const props = data.properties || {};
        Object.keys(props).forEach(function(k) {
          html += '<div class="detail">' + escapeHtml(k) + ': ' + escapeHtml(props[k]) + '</div>';
        });
        html += '<div class="detail">Degree: ' + node.degree() + '</div>';
        return html;
      }

      function clearHighlight() {
        cy.elements().removeClass('highlighted dimmed');
      }

      function highlight(node) {
        clearHighlight();
        const hood = node.closedNeighborhood();
        hood.addClass('highlighted');
        cy.elements().not(hood).addClass('dimmed');
      }

      cy.on('mouseover', 'node', function(evt) {
        highlight(evt.target);
        showTooltip(evt, getNodeTooltip(evt.target));
      });

      cy.on('mouseout', 'node', function() {
        clearHighlight();
        hideTooltip();
      });

      cy.on('tap', 'node', function(evt) {
        const node = evt.target;
        cy.animate({ fit: { eles: node.closedNeighborhood(), padding: 60 } }, { duration: 300 });
        if (live) {
          const pos = node.renderedPosition();
          fetch('/api/select/' + encodeURIComponent(node.id()), {
            method: 'POST',
            headers: { 'Content-Type': 'application/json' },
            body: JSON.stringify({ x: pos.x, y: pos.y })
          });
        }
      });

      cy.on('tap', function(evt) {
        if (evt.target === cy) {
          clearHighlight();
          if (live) fetch('/api/select', { method: 'DELETE' });
        }
      });

      document.getElementById('export-png').addEventListener('click', function() {
        const link = document.createElement('a');
        link.href = cy.png({ full: true, bg: 'white' });
        link.download = 'graph.png';
        link.click();
      });

      if (!live) return;

      function reload() {
        window.location.reload();
      }

      function putView(body) {
        return fetch('/api/view', {
          method: 'PUT',
          headers: { 'Content-Type': 'application/json' },
          body: JSON.stringify(body)
        }).then(reload);
      }

      cy.on('dbltap', 'node', function(evt) {
        fetch('/api/expand', {
          method: 'POST',
          headers: { 'Content-Type': 'application/json' },
          body: JSON.stringify({ id: evt.target.id(), depth: 1 })
        }).then(reload);
      });

      document.getElementById('filter').addEventListener('change', function(e) {
        putView({ filter: e.target.value });
      });
      document.getElementById('layout').addEventListener('change', function(e) {
        putView({ layout: e.target.value });
      });
      document.getElementById('search').addEventListener('change', function(e) {
        putView({ search: e.target.value });
      });
    })();
  </script>
</body>
</html>`
