// Package render turns stored message bodies into client-ready markup.
// Variants are selected by configuration instead of overriding a base
// renderer at runtime.
package render

import (
	"fmt"
	"html"
	"regexp"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
)

// Render modes accepted by New.
const (
	ModePlain    = "plain"
	ModeEnhanced = "enhanced"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<]+`)

// MessageRenderer annotates a message view with presentation fields.
type MessageRenderer interface {
	Render(view *dto.MessageView)
}

// New returns the renderer for the configured mode, defaulting to plain.
func New(mode string) MessageRenderer {
	if mode == ModeEnhanced {
		return ImagePreviewRenderer{}
	}
	return PlainRenderer{}
}

// PlainRenderer escapes the body and turns bare URLs into links. Rich text
// beyond URL linking is out of scope.
type PlainRenderer struct{}

func (PlainRenderer) Render(view *dto.MessageView) {
	view.RenderedBody = linkify(html.EscapeString(view.Body))
}

// ImagePreviewRenderer renders like PlainRenderer and additionally exposes
// an inline preview reference for image messages.
type ImagePreviewRenderer struct{}

func (ImagePreviewRenderer) Render(view *dto.MessageView) {
	PlainRenderer{}.Render(view)
	if view.Kind == models.MessageKindImage && view.Attachment != nil {
		view.PreviewURL = view.Attachment.StoredRef
	}
}

func linkify(escaped string) string {
	return urlPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener">%s</a>`, match, match)
	})
}
