package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"pdf-qa/internal/iam"
	"pdf-qa/internal/models"
	"pdf-qa/internal/session"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// renderMarkdown converts model output to HTML. Raw HTML in the input is
// not passed through.
func renderMarkdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}

// describeError turns a pipeline error into the text shown in the error
// panel.
func describeError(err error) string {
	var (
		authErr *models.AuthError
		genErr  *models.GenerationError
	)
	switch {
	case errors.As(err, &authErr):
		return iam.Describe(authErr)
	case errors.As(err, &genErr) && genErr.StatusCode != 0:
		return fmt.Sprintf("WatsonX API failed:\nStatus Code: %d\nResponse:\n%s", genErr.StatusCode, genErr.Body)
	case errors.Is(err, session.ErrNoDocument):
		return "Upload a PDF before asking a question."
	default:
		return err.Error()
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PDF Q&amp;A</title>
<style>
body { font-family: sans-serif; max-width: 60rem; margin: 2rem auto; }
.panel { padding: .75rem 1rem; border-radius: .4rem; margin: 1rem 0; }
.success { background: #e6f4ea; }
.info { background: #e8f0fe; }
.warning { background: #fef7e0; }
.error { background: #fce8e6; }
pre { white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Chat With Your PDF</h1>

<form method="post" action="/upload" enctype="multipart/form-data">
  <label>Upload your PDF file here <input type="file" name="pdf" accept="application/pdf,.pdf"></label>
  <button type="submit">Upload</button>
</form>

{{with .Notice}}<div class="panel success">{{.}}</div>{{end}}
{{with .Warning}}<div class="panel warning">{{.}}</div>{{end}}

{{with .Document}}
<div class="panel info">Document <b>{{.Name}}</b>: {{len .Chunks}} chunks</div>
<form method="get" action="/">
  <label><input type="checkbox" name="debug" value="1" {{if $.ShowChunks}}checked{{end}} onchange="this.form.submit()"> Show extracted chunks (debug)</label>
</form>
{{if $.ShowChunks}}{{range $.Chunks}}
<p><b>Chunk {{.Number}}:</b></p>
<pre>{{.Content}}</pre>
{{end}}{{end}}

<form method="post" action="/ask">
  <label>Ask a question based on the PDF: <input type="text" name="question" size="60" value="{{$.Question}}"></label>
  <button type="submit">Ask</button>
</form>
{{end}}

{{with .Answer}}<h3>Answer:</h3><div class="panel success">{{.}}</div>{{end}}
{{with .Error}}<div class="panel error"><p>Something went wrong.</p><pre>{{.}}</pre></div>{{end}}
</body>
</html>
`))

type previewChunk struct {
	Number  int
	Content string
}

type pageData struct {
	Document   *session.Document
	ShowChunks bool
	Chunks     []previewChunk
	Question   string
	Answer     template.HTML
	Notice     string
	Warning    string
	Error      string
}
