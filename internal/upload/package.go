package upload

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"github.com/lehigh-university-libraries/pagescan/internal/compress"
	"github.com/lehigh-university-libraries/pagescan/internal/models"
)

const (
	nameField  = "pdf_name"
	pagesField = "images"
)

// Package is an encoded multipart submission body
type Package struct {
	Body        []byte
	ContentType string
	Pages       int
}

// PageFilename is the part filename for the 1-based page position
func PageFilename(position int, format models.Format) string {
	return fmt.Sprintf("page_%d.%s", position, format.Extension())
}

// BuildPackage compresses every page in order and writes the document name
// followed by one part per page.
func BuildPackage(doc models.Document, policy compress.Policy) (*Package, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField(nameField, doc.Name); err != nil {
		return nil, fmt.Errorf("failed to write name field: %w", err)
	}

	for i, page := range doc.Pages {
		compressed, err := policy.Apply(page)
		if err != nil {
			return nil, fmt.Errorf("failed to compress page %d: %w", i+1, err)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, pagesField, PageFilename(i+1, compressed.Format())))
		header.Set("Content-Type", compressed.Format().MimeType())

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create part for page %d: %w", i+1, err)
		}
		if _, err := part.Write(compressed.Bytes()); err != nil {
			return nil, fmt.Errorf("failed to write page %d: %w", i+1, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &Package{
		Body:        buf.Bytes(),
		ContentType: writer.FormDataContentType(),
		Pages:       len(doc.Pages),
	}, nil
}
