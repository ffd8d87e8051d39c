package views

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// LoginIndex renders the login form body.
func LoginIndex(csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section class="auth">
<h1>Operator login</h1>
<form method="post" action="/login">
<input type="hidden" name="_csrf" value="%s">
<label>Email<input type="email" name="email" required autofocus></label>
<label>Password<input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
</section>`, html.EscapeString(csrfToken))
		return err
	})
}

// Login composes the login page.
func Login(flashMessage, flashType, csrfToken string) templ.Component {
	return Layout(" | Login", false, false, flashMessage, flashType, LoginIndex(csrfToken))
}
