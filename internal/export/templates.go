package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var chapterTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	content, err := templateFS.ReadFile("templates/chapter.html")
	if err != nil {
		chapterTemplate = template.Must(template.New("chapter").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	chapterTemplate = template.Must(template.New("chapter").Funcs(funcMap).Parse(string(content)))
}

// TemplateData holds data for chapter template rendering
type TemplateData struct {
	BookTitle     string
	ChapterNumber int
	ReaderName    string
	GeneratedAt   time.Time
	Verses        []TemplateVerse
	Notes         []TemplateNote
}

// TemplateVerse is one rendered verse with highlights already marked up
type TemplateVerse struct {
	Number int
	HTML   template.HTML
}

// TemplateNote is one note shown under the chapter body
type TemplateNote struct {
	VerseNumber int
	Content     string
}

// RenderChapterHTML renders the chapter template with provided data
func RenderChapterHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := chapterTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.BookTitle}} {{.ChapterNumber}}</title>
</head>
<body>
  <h1>{{.BookTitle}} {{.ChapterNumber}}</h1>
  {{range .Verses}}<p><sup>{{.Number}}</sup> {{.HTML}}</p>{{end}}
  {{if .Notes}}<h2>Notes</h2>{{range .Notes}}<p>v{{.VerseNumber}}: {{.Content}}</p>{{end}}{{end}}
</body>
</html>`
