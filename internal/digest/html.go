package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"roundup/internal/core"
)

// topicLinePattern matches one rendered chat topic entry:
// **topic** (N new): summary, with an optional relative-time note after
// the count.
var (
	topicLinePattern = regexp.MustCompile(`^\*\*(.+?)\*\* \((\d+) new(?:, [^)]+)?\): (.+)$`)
	boldPattern      = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// htmlTopic is one parsed chat topic block for the template.
type htmlTopic struct {
	Name     string
	NewCount string
	Summary  string
}

// htmlEntry is one source rendered into the email.
type htmlEntry struct {
	SourceName string
	WorkGroup  string
	URL        string
	IsTrending bool
	Header     template.HTML
	Topics     []htmlTopic
	Paragraphs []template.HTML
}

// htmlGroup collects a work group's entries.
type htmlGroup struct {
	WorkGroup string
	Entries   []htmlEntry
}

// htmlSection is one source-type section with its freshness split.
type htmlSection struct {
	Title        string
	RecentGroups []htmlGroup
	OlderGroups  []htmlGroup
}

// htmlData is the full template payload.
type htmlData struct {
	Title       string
	Date        string
	Sections    []htmlSection
	HasContent  bool
	GeneratedAt string
	CSS         template.HTML
}

// emailCSS is a fixed responsive style block. Email clients strip external
// stylesheets, so everything ships inline in the head.
const emailCSS = `
<style type="text/css">
  body, table, td, p, a, li {
    -webkit-text-size-adjust: 100%;
    -ms-text-size-adjust: 100%;
  }
  body {
    margin: 0 !important;
    padding: 0 !important;
    background-color: #f8fafc;
    font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif;
    color: #1e293b;
    line-height: 1.6;
  }
  .container {
    max-width: 640px;
    margin: 0 auto;
    background-color: #ffffff;
    border: 1px solid #e2e8f0;
    border-radius: 8px;
    overflow: hidden;
  }
  .header {
    background-color: #2563eb;
    color: #ffffff;
    padding: 24px;
    text-align: center;
  }
  .header h1 {
    margin: 0;
    font-size: 24px;
    font-weight: 600;
  }
  .header .date {
    margin: 8px 0 0 0;
    font-size: 14px;
    opacity: 0.9;
  }
  .content {
    padding: 24px;
  }
  h2 {
    color: #1e293b;
    font-size: 20px;
    font-weight: 600;
    margin: 32px 0 16px 0;
    border-bottom: 2px solid #e2e8f0;
    padding-bottom: 8px;
  }
  .split-title {
    color: #1e293b;
    font-size: 16px;
    font-weight: 600;
    margin: 20px 0 8px 0;
  }
  .group-title {
    color: #2563eb;
    font-size: 15px;
    font-weight: 600;
    margin: 24px 0 12px 0;
    text-transform: uppercase;
    letter-spacing: 0.5px;
  }
  a {
    color: #3b82f6;
    text-decoration: none;
  }
  a:hover {
    text-decoration: underline;
  }
  .source-card {
    background-color: #f8fafc;
    border: 1px solid #e2e8f0;
    border-radius: 6px;
    padding: 18px;
    margin: 14px 0;
  }
  .source-title {
    font-size: 17px;
    font-weight: 600;
    color: #1e293b;
    margin: 0 0 10px 0;
  }
  .trending-badge {
    display: inline-block;
    background-color: #fef3c7;
    color: #92400e;
    font-size: 12px;
    font-weight: 600;
    border-radius: 4px;
    padding: 2px 8px;
    margin-left: 8px;
    vertical-align: middle;
  }
  .source-summary {
    font-size: 15px;
    line-height: 1.6;
    margin: 0 0 12px 0;
  }
  .topic-block {
    border-left: 3px solid #e2e8f0;
    padding: 6px 0 6px 12px;
    margin: 10px 0;
  }
  .topic-name {
    font-weight: 600;
  }
  .topic-count {
    font-size: 13px;
    color: #64748b;
    margin-left: 6px;
  }
  .source-meta {
    font-size: 13px;
    color: #64748b;
    margin: 10px 0 0 0;
  }
  .footer {
    background-color: #f1f5f9;
    padding: 20px 24px;
    text-align: center;
    font-size: 13px;
    color: #64748b;
    border-top: 1px solid #e2e8f0;
  }
  @media only screen and (max-width: 640px) {
    .container {
      margin: 0 !important;
      border-radius: 0 !important;
      border-left: none !important;
      border-right: none !important;
    }
    .content {
      padding: 16px !important;
    }
    .header {
      padding: 16px !important;
    }
  }
</style>
`

const emailTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    {{.CSS}}
</head>
<body>
    <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%">
        <tr>
            <td align="center">
                <div class="container">
                    <div class="header">
                        <h1>{{.Title}}</h1>
                        <p class="date">{{.Date}}</p>
                    </div>
                    <div class="content">
                        {{if .HasContent}}
                        {{range .Sections}}
                        <h2>{{.Title}}</h2>
                        {{if .RecentGroups}}
                        <h3 class="split-title">Recent Activity</h3>
                        {{template "groups" .RecentGroups}}
                        {{end}}
                        {{if .OlderGroups}}
                        <h3 class="split-title">Older Content</h3>
                        {{template "groups" .OlderGroups}}
                        {{end}}
                        {{if and (not .RecentGroups) (not .OlderGroups)}}
                        <p>No updates.</p>
                        {{end}}
                        {{end}}
                        {{else}}
                        <p>No updates from any configured source.</p>
                        {{end}}
                    </div>
                    <div class="footer">
                        <p>Generated {{.GeneratedAt}}</p>
                    </div>
                </div>
            </td>
        </tr>
    </table>
</body>
</html>

{{define "groups"}}
{{range .}}
<div class="group-title">{{.WorkGroup}}</div>
{{range .Entries}}
<div class="source-card">
    <h3 class="source-title">
        <a href="{{.URL}}">{{.SourceName}}</a>
        {{if .IsTrending}}<span class="trending-badge">Trending</span>{{end}}
    </h3>
    {{if .Header}}<div class="source-summary">{{.Header}}</div>{{end}}
    {{range .Topics}}
    <div class="topic-block">
        <span class="topic-name">{{.Name}}</span><span class="topic-count">{{.NewCount}} new</span>
        <div>{{.Summary}}</div>
    </div>
    {{end}}
    {{range .Paragraphs}}
    <div class="source-summary">{{.}}</div>
    {{end}}
    <div class="source-meta"><a href="{{.URL}}">View source</a></div>
</div>
{{end}}
{{end}}
{{end}}
`

// renderInline escapes a plain text line and converts **bold** runs.
func renderInline(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	return template.HTML(boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>"))
}

// buildEntry converts one summary into its template form, parsing rendered
// chat topic lines into structured blocks and passing everything else
// through as paragraphs.
func buildEntry(s core.ContentSummary) htmlEntry {
	entry := htmlEntry{
		SourceName: s.SourceName,
		WorkGroup:  s.WorkGroup,
		URL:        s.URL,
		IsTrending: s.IsTrending,
	}

	blocks := strings.Split(s.Summary, "\n\n")
	for i, block := range blocks {
		block = strings.TrimSpace(strings.ReplaceAll(block, "\n", " "))
		if block == "" {
			continue
		}
		if m := topicLinePattern.FindStringSubmatch(block); m != nil {
			entry.Topics = append(entry.Topics, htmlTopic{Name: m[1], NewCount: m[2], Summary: m[3]})
			continue
		}
		if i == 0 && entry.Header == "" {
			entry.Header = renderInline(block)
			continue
		}
		entry.Paragraphs = append(entry.Paragraphs, renderInline(block))
	}
	return entry
}

// groupByWorkGroup preserves first-seen work group order.
func groupByWorkGroup(summaries []core.ContentSummary) []htmlGroup {
	var groups []htmlGroup
	index := make(map[string]int)
	for _, s := range summaries {
		group := s.WorkGroup
		if group == "" {
			group = "General"
		}
		i, ok := index[group]
		if !ok {
			i = len(groups)
			index[group] = i
			groups = append(groups, htmlGroup{WorkGroup: group})
		}
		groups[i].Entries = append(groups[i].Entries, buildEntry(s))
	}
	return groups
}

// RenderHTML renders a digest as a self-contained HTML email body. Each
// section is split into recent and older halves, grouped by work group
// within each half.
func RenderHTML(d core.Digest, title string) (string, error) {
	if title == "" {
		title = DefaultTitle
	}

	var sections []htmlSection
	hasContent := false
	for _, section := range d.Sections {
		var recent, older []core.ContentSummary
		for _, s := range section.Summaries {
			if s.HasUpdates {
				recent = append(recent, s)
			} else {
				older = append(older, s)
			}
		}
		if len(section.Summaries) > 0 {
			hasContent = true
		}
		sections = append(sections, htmlSection{
			Title:        section.Title,
			RecentGroups: groupByWorkGroup(recent),
			OlderGroups:  groupByWorkGroup(older),
		})
	}

	data := htmlData{
		Title:       title,
		Date:        d.Date.Format("Monday, January 2, 2006"),
		Sections:    sections,
		HasContent:  hasContent,
		GeneratedAt: d.GeneratedAt.Format("Jan 2, 2006 15:04 MST"),
		CSS:         template.HTML(emailCSS),
	}

	tmpl, err := template.New("digest").Parse(emailTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse digest template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute digest template: %w", err)
	}
	return buf.String(), nil
}
