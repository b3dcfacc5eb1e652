// Package report aggregates a run's fetch records into a session summary
// and renders it as text, JSON, or HTML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/epsil/linkgrab/internal/mirror"
	"github.com/epsil/linkgrab/internal/storage"
)

// Summary aggregates one run: the fetch traffic plus whatever the mirror
// walk produced.
type Summary struct {
	Pages        int
	Entries      int
	Requests     int
	Errors       int
	Blocked      int
	BlockedBySrc map[string]int
	StatusCodes  map[int]int
	TotalBytes   int64
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

// Generate folds the run's fetch records and mirror stats into a Summary.
func Generate(records []*storage.FetchRecord, stats mirror.Stats) Summary {
	s := Summary{
		Pages:        stats.Pages,
		Entries:      stats.Entries,
		BlockedBySrc: make(map[string]int),
		StatusCodes:  make(map[int]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	for _, r := range records {
		s.Requests++
		if r.Error != "" {
			s.Errors++
		}
		if r.Blocked {
			s.Blocked++
			s.BlockedBySrc[r.BlockSrc]++
		}
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}
		s.TotalBytes += int64(len(r.Body))

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable run summary.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Linkgrab Run Summary
--------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Pages:         {{.Pages}}
Entries:       {{.Entries}}
Total Fetch:   {{.Requests}} requests
Total Bytes:   {{.TotalBytes}} bytes
Total Errors:  {{.Errors}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Blocked: {{.Blocked}}
{{- range $src, $count := .BlockedBySrc}}
  {{$src}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text summary: %w", err)
	}

	return nil
}

// WriteHTML writes a basic standalone HTML report.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Linkgrab Run Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Linkgrab Run Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Pages</div>
    <div class="stat-val">{{.Pages}}</div>
  </div>
  <div class="stat-card">
    <div>Entries</div>
    <div class="stat-val">{{.Entries}}</div>
  </div>
  <div class="stat-card">
    <div>Requests</div>
    <div class="stat-val">{{.Requests}}</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val">{{.Errors}}</div>
  </div>
  <div class="stat-card">
    <div>Blocked</div>
    <div class="stat-val" style="color: {{if gt .Blocked 0}}red{{else}}green{{end}};">{{.Blocked}}</div>
  </div>

  <h3>Status Codes</h3>
  <table>
    <tr><th>Code</th><th>Count</th></tr>
    {{- range $code, $count := .StatusCodes}}
    <tr><td>{{$code}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Blocked By Source</h3>
  <table>
    <tr><th>Source</th><th>Count</th></tr>
    {{- range $src, $count := .BlockedBySrc}}
    <tr><td>{{$src}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
