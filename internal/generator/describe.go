package generator

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/logging"
)

// Image is a picture sent to a vision-capable chat model.
type Image struct {
	// MIMEType is the sniffed content type, e.g. "image/png".
	MIMEType string

	// Data is the raw encoded image.
	Data []byte
}

// DataURL encodes the image as an RFC 2397 data URL.
func (img Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// DescribeMessages builds the multimodal prompt for img without calling the
// model. No retrieved context is involved.
func DescribeMessages(instruction string, img Image) []*schema.Message {
	return []*schema.Message{
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: instruction},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:      img.DataURL(),
						MIMEType: img.MIMEType,
						Detail:   schema.ImageURLDetailAuto,
					},
				},
			},
		},
	}
}

// Describe streams a description of img into sink. Failure semantics match
// Generate: any provider, sink or cancellation error is a GenerationError
// and partial text is discarded.
func (g *Generator) Describe(ctx context.Context, instruction string, img Image, sink Sink) (string, error) {
	const op = "generator: describe"
	if strings.TrimSpace(instruction) == "" {
		return "", apperr.New(apperr.KindInvalidRequest, op, "instruction must not be empty")
	}
	if len(img.Data) == 0 || img.MIMEType == "" {
		return "", apperr.New(apperr.KindInvalidRequest, op, "image must not be empty")
	}
	if sink == nil {
		sink = Discard
	}
	logging.FromContext(ctx).Debug("generator: describing image",
		slog.String("mime_type", img.MIMEType),
		slog.Int("bytes", len(img.Data)),
		slog.String("model", g.modelName),
	)
	return g.stream(ctx, op, DescribeMessages(instruction, img), sink)
}

