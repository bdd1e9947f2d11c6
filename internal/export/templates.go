package export

import (
	"bytes"
	"embed"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"join":  strings.Join,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/report.html"))

// TemplateData holds data for report template rendering
type TemplateData struct {
	Title        string
	Summary      string
	BoardName    string
	BoardVersion string
	CreatedBy    string
	CreatedAt    time.Time
	Findings     []TemplateFinding
}

// TemplateFinding holds one finding with its affected steps resolved to labels.
type TemplateFinding struct {
	Type        string
	Severity    string
	Description string
	Steps       []string
}

var severityRank = map[string]int{"critical": 0, "high": 1, "medium": 2, "low": 3}

func rank(severity string) int {
	if r, ok := severityRank[strings.ToLower(severity)]; ok {
		return r
	}
	return len(severityRank)
}

// NewTemplateData orders findings by severity and names affected steps by
// label when the node is known, by id otherwise.
func NewTemplateData(report store.Report, board store.Board, nodes ...store.Node) TemplateData {
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		label := strings.TrimSpace(n.Data.Label)
		if label == "" {
			label = n.NodeID
		}
		labels[n.NodeID] = label
	}

	data := TemplateData{
		Title:        report.Title,
		Summary:      report.Summary,
		BoardName:    board.Name,
		BoardVersion: board.Version,
		CreatedBy:    report.CreatedBy,
		CreatedAt:    report.CreatedAt,
		Findings:     make([]TemplateFinding, 0, len(report.Findings)),
	}
	for _, f := range report.Findings {
		tf := TemplateFinding{Type: f.Type, Severity: f.Severity, Description: f.Description}
		for _, id := range f.AffectedNodeIDs {
			if label, ok := labels[id]; ok {
				tf.Steps = append(tf.Steps, label)
			} else {
				tf.Steps = append(tf.Steps, id)
			}
		}
		data.Findings = append(data.Findings, tf)
	}
	sort.SliceStable(data.Findings, func(i, j int) bool {
		return rank(data.Findings[i].Severity) < rank(data.Findings[j].Severity)
	})
	return data
}

// RenderHTML renders a report as a standalone HTML page.
func RenderHTML(report store.Report, board store.Board, nodes ...store.Node) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, NewTemplateData(report, board, nodes...)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
