package views

import "context"

type pageKey struct{}

// WithPage stores the request's base page (principal and display name).
func WithPage(ctx context.Context, p Page) context.Context {
	return context.WithValue(ctx, pageKey{}, p)
}

// PageFrom returns the base page stored on ctx, or an empty page.
func PageFrom(ctx context.Context) Page {
	p, _ := ctx.Value(pageKey{}).(Page)
	return p
}
