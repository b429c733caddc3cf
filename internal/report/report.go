package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/givescan/givescan/internal/analyzer"
	"github.com/givescan/givescan/internal/storage"
)

// Summary contains aggregated metrics about a finder run.
type Summary struct {
	RunID          string
	TotalPlaces    int
	WithEmail      int
	WithWebsite    int
	WithPhone      int
	Enriched       int
	AvgRating      float64
	ClosestName    string
	ClosestMeters  float64
	StatusCounts   map[string]int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Places         []PlaceEntry
}

// PlaceEntry is a single organization row for report rendering.
type PlaceEntry struct {
	Name       string
	Address    string
	Rating     string
	Phone      string
	Website    string
	Email      string
	DistanceKm string
	Reviews    []ReviewEntry
	// Mentions are review sentences touching giving-related terms.
	Mentions []string
}

// ReviewEntry is a rendered review snippet.
type ReviewEntry struct {
	Author string
	Rating float64
	Text   string
	When   string
}

// reviewSnippet caps review text length in rendered reports.
const reviewSnippet = 100

// GenerateSummary processes a slice of stored results to generate run metrics
// and the per-place listing used by the text and HTML renderers.
func GenerateSummary(records []*storage.Record) Summary {
	s := Summary{
		StatusCounts: make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.RunID = records[0].RunID
	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	var ratingSum float64
	var ratingN int
	closest := -1.0

	for _, rec := range records {
		p := rec.Place
		s.TotalPlaces++

		if p.Email != "" {
			s.WithEmail++
		}
		if p.Website != "" {
			s.WithWebsite++
		}
		if p.Phone != "" {
			s.WithPhone++
		}
		if p.DetailFetched {
			s.Enriched++
		}
		if p.BusinessStatus != "" {
			s.StatusCounts[p.BusinessStatus]++
		}
		if p.Rating != nil {
			ratingSum += *p.Rating
			ratingN++
		}
		if p.DistanceMeters != nil && (closest < 0 || *p.DistanceMeters < closest) {
			closest = *p.DistanceMeters
			s.ClosestName = p.Name
		}

		if rec.CreatedAt.Before(s.StartTime) {
			s.StartTime = rec.CreatedAt
		}
		if rec.CreatedAt.After(s.EndTime) {
			s.EndTime = rec.CreatedAt
		}

		s.Places = append(s.Places, placeEntry(rec))
	}

	if ratingN > 0 {
		s.AvgRating = ratingSum / float64(ratingN)
	}
	if closest >= 0 {
		s.ClosestMeters = closest
	}
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

func placeEntry(rec *storage.Record) PlaceEntry {
	p := rec.Place

	e := PlaceEntry{
		Name:    p.Name,
		Address: p.Address,
		Rating:  "No rating",
		Phone:   p.Phone,
		Website: p.Website,
		Email:   p.Email,
	}
	if p.Rating != nil {
		e.Rating = fmt.Sprintf("%.1f", *p.Rating)
	}
	if p.DistanceKm != nil {
		e.DistanceKm = fmt.Sprintf("%.1f km", *p.DistanceKm)
	}

	seen := make(map[string]struct{})
	for _, r := range p.Reviews {
		author := r.Author
		if author == "" {
			author = "Anonymous"
		}
		text := r.Text
		if len(text) > reviewSnippet {
			cut := reviewSnippet
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "..."
		}
		e.Reviews = append(e.Reviews, ReviewEntry{
			Author: author,
			Rating: r.Rating,
			Text:   text,
			When:   r.RelativeTime,
		})

		// Each review is analyzed on its own so an unterminated review
		// cannot bleed into the next one's sentences.
		matches := analyzer.FindTermMatches(r.Text, analyzer.DonationTerms)
		for _, sentence := range analyzer.MatchedSentences(matches) {
			if _, dup := seen[sentence]; dup {
				continue
			}
			seen[sentence] = struct{}{}
			e.Mentions = append(e.Mentions, sentence)
		}
	}

	return e
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `DONATION OPPORTUNITIES FOUND
============================
Run:            {{.RunID}}
Time:           {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:       {{.Duration}}
Organizations:  {{.TotalPlaces}}
With Email:     {{.WithEmail}}
With Website:   {{.WithWebsite}}
With Phone:     {{.WithPhone}}
Enriched:       {{.Enriched}}
Avg Rating:     {{printf "%.2f" .AvgRating}}
{{- if .ClosestName}}
Closest:        {{.ClosestName}} ({{printf "%.0f" .ClosestMeters}} m)
{{- end}}

Business Status:
{{- range $status, $count := .StatusCounts}}
  {{$status}}: {{$count}}
{{- else}}
  None
{{- end}}

RESULTS
-------
{{- range $i, $p := .Places}}
{{inc $i}}. {{$p.Name}}
   Rating: {{$p.Rating}}
   Address: {{$p.Address}}
   {{- if $p.Phone}}
   Phone: {{$p.Phone}}
   {{- end}}
   {{- if $p.Email}}
   Email: {{$p.Email}}
   {{- end}}
   {{- if $p.Website}}
   Website: {{$p.Website}}
   {{- end}}
   {{- if $p.DistanceKm}}
   Distance: {{$p.DistanceKm}}
   {{- end}}
   {{- range $j, $r := $p.Reviews}}{{if lt $j 2}}
   - {{$r.Author}} ({{printf "%.1f" $r.Rating}}): "{{$r.Text}}"{{if $r.When}} ({{$r.When}}){{end}}
   {{- end}}{{end}}
   {{- if $p.Mentions}}
   Giving mentions:
   {{- range $p.Mentions}}
     > {{.}}
   {{- end}}
   {{- end}}
{{- else}}
No organizations found.
{{- end}}
`

	t, err := template.New("textReport").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}

	return nil
}

// WriteHTML writes an HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Donation Opportunities Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .place { border: 1px solid #ddd; border-radius: 5px; padding: 15px; margin: 15px 0; }
  .place-name { font-size: 18px; font-weight: bold; color: #2c3e50; }
  .place-info { color: #666; margin: 5px 0; }
  .email { color: #27ae60; font-weight: bold; }
  .review { margin: 10px 0; padding: 8px; background: #f8f9fa; border-radius: 4px; }
  .review-author { font-weight: bold; color: #2c3e50; }
</style>
</head>
<body>
  <h1>Donation Opportunities Report</h1>
  <p><strong>Run:</strong> {{.RunID}}</p>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Organizations</div>
    <div class="stat-val">{{.TotalPlaces}}</div>
  </div>
  <div class="stat-card">
    <div>With Email</div>
    <div class="stat-val">{{.WithEmail}}</div>
  </div>
  <div class="stat-card">
    <div>With Website</div>
    <div class="stat-val">{{.WithWebsite}}</div>
  </div>
  <div class="stat-card">
    <div>Avg Rating</div>
    <div class="stat-val">{{printf "%.2f" .AvgRating}}</div>
  </div>
{{- if .ClosestName}}
  <p><strong>Closest:</strong> {{.ClosestName}} ({{printf "%.0f" .ClosestMeters}} m)</p>
{{- end}}

{{- range $i, $p := .Places}}
  <div class="place">
    <div class="place-name">{{inc $i}}. {{$p.Name}}</div>
    <div class="place-info">Rating: {{$p.Rating}}</div>
    <div class="place-info">Address: {{$p.Address}}</div>
    {{- if $p.Phone}}
    <div class="place-info">Phone: {{$p.Phone}}</div>
    {{- end}}
    {{- if $p.Email}}
    <div class="place-info email">Email: {{$p.Email}}</div>
    {{- end}}
    {{- if $p.Website}}
    <div class="place-info">Website: <a href="{{$p.Website}}">{{$p.Website}}</a></div>
    {{- end}}
    {{- if $p.DistanceKm}}
    <div class="place-info">Distance: {{$p.DistanceKm}}</div>
    {{- end}}
    {{- range $j, $r := $p.Reviews}}{{if lt $j 3}}
    <div class="review">
      <div class="review-author">{{$r.Author}} ({{printf "%.1f" $r.Rating}})</div>
      <div>"{{$r.Text}}"</div>
      {{- if $r.When}}
      <div style="font-size: 11px; color: #999;">{{$r.When}}</div>
      {{- end}}
    </div>
    {{- end}}{{end}}
    {{- if $p.Mentions}}
    <div class="place-info"><strong>Giving mentions:</strong>
      <ul>
      {{- range $p.Mentions}}
        <li>{{.}}</li>
      {{- end}}
      </ul>
    </div>
    {{- end}}
  </div>
{{- else}}
  <p>No organizations found.</p>
{{- end}}
</body>
</html>
`
	t, err := template.New("htmlReport").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}

	return nil
}
