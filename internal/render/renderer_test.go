package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiacomm/chat-api/internal/dto"
	"github.com/fiacomm/chat-api/internal/models"
)

func TestPlainRendererEscapesAndLinkifies(t *testing.T) {
	view := dto.MessageView{Body: `<b>bold</b> see https://example.com/page?x=1`}
	PlainRenderer{}.Render(&view)

	require.NotContains(t, view.RenderedBody, "<b>")
	require.Contains(t, view.RenderedBody, "&lt;b&gt;bold&lt;/b&gt;")
	require.Contains(t, view.RenderedBody, `<a href="https://example.com/page?x=1"`)
	require.Contains(t, view.RenderedBody, `rel="noopener"`)
}

func TestImagePreviewRendererExposesStoredRef(t *testing.T) {
	view := dto.MessageView{
		Body:       "Shared a file: shot.png",
		Kind:       models.MessageKindImage,
		Attachment: &dto.AttachmentInfo{FileName: "shot.png", StoredRef: "uploads/abc.png"},
	}
	ImagePreviewRenderer{}.Render(&view)
	require.Equal(t, "uploads/abc.png", view.PreviewURL)

	// Non-image messages never get a preview, attachment or not.
	doc := dto.MessageView{
		Body:       "Shared a file: report.pdf",
		Kind:       models.MessageKindFile,
		Attachment: &dto.AttachmentInfo{StoredRef: "uploads/report.pdf"},
	}
	ImagePreviewRenderer{}.Render(&doc)
	require.Empty(t, doc.PreviewURL)
}

func TestNewSelectsRendererByMode(t *testing.T) {
	require.IsType(t, ImagePreviewRenderer{}, New(ModeEnhanced))
	require.IsType(t, PlainRenderer{}, New(ModePlain))
	require.IsType(t, PlainRenderer{}, New("unknown"))
}
