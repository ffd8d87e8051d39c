package views

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps page content in the shared chrome. The generated templ views
// of the old dashboard prototype were replaced with these hand-written
// components; same interface, no generator step.
func Layout(title string, loggedIn, isAdmin bool, flashMessage, flashType string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>RevRescue%s</title>
<link rel="stylesheet" href="/css/app.css">
</head>
<body>
<header class="nav">
<a class="brand" href="/">RevRescue</a>
<nav>`, html.EscapeString(title)); err != nil {
			return err
		}
		if loggedIn {
			if _, err := io.WriteString(w, `<a href="/admin/queue">Queue</a><a href="/admin/ledger">Ledger</a>`); err != nil {
				return err
			}
			if _, err := io.WriteString(w, `<form method="post" action="/logout" class="inline"><button type="submit">Logout</button></form>`); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, `<a href="/login">Login</a>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</nav></header>`); err != nil {
			return err
		}

		if flashMessage != "" {
			cls := "flash-info"
			if flashType == "error" {
				cls = "flash-error"
			} else if flashType == "success" {
				cls = "flash-success"
			}
			if _, err := fmt.Fprintf(w, `<div class="%s">%s</div>`, cls, html.EscapeString(flashMessage)); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `<main>`); err != nil {
			return err
		}
		if err := content.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}
