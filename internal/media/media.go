// Package media resolves the binary payload of image and document messages
// from an uploaded file or a remote URL.
package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
)

// ErrSourceRequired is returned when a request carries neither an upload nor
// a URL.
var ErrSourceRequired = errors.New("file or url required")

// Upload is a file received in a multipart request.
type Upload struct {
	Field    string
	Filename string
	MimeType string
	Data     []byte
}

// Request is the part of an inbound request the resolver looks at.
type Request struct {
	Fields  fields.Payload
	Uploads []Upload
}

// Fetcher downloads a remote resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type profile struct {
	uploadFields fields.Aliases
	urlFields    fields.Aliases
	mimeType     string
	filename     string
}

var profiles = map[model.Kind]profile{
	model.KindImage: {
		uploadFields: fields.ImageUpload,
		urlFields:    fields.ImageURL,
		mimeType:     "image/png",
		filename:     "image.png",
	},
	model.KindDocument: {
		uploadFields: fields.DocumentUpload,
		urlFields:    fields.DocumentURL,
		mimeType:     "application/pdf",
		filename:     "document.pdf",
	},
}

// Resolver builds media payloads.
type Resolver struct {
	fetcher Fetcher
}

// NewResolver creates a resolver that downloads URLs with f.
func NewResolver(f Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Resolve produces the media for kind. Uploads take precedence over URLs.
func (r *Resolver) Resolve(ctx context.Context, kind model.Kind, req Request) (*model.Media, error) {
	p, ok := profiles[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported media kind %q", kind)
	}

	m := &model.Media{
		MimeType: fields.String(req.Fields, fields.MimeType, p.mimeType),
		Filename: fields.String(req.Fields, fields.Filename, p.filename),
		Caption:  fields.String(req.Fields, fields.Caption, ""),
	}

	if up := findUpload(req.Uploads, p.uploadFields); up != nil {
		m.Data = up.Data
		if up.MimeType != "" {
			m.MimeType = up.MimeType
		}
		if up.Filename != "" {
			m.Filename = up.Filename
		}
		return m, nil
	}

	url := fields.String(req.Fields, p.urlFields, "")
	if url == "" {
		return nil, ErrSourceRequired
	}
	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s media: %w", kind, err)
	}
	m.Data = data
	return m, nil
}

// findUpload returns the non-empty upload under the highest-priority alias.
func findUpload(uploads []Upload, names fields.Aliases) *Upload {
	for _, name := range names {
		for i := range uploads {
			if uploads[i].Field == name && len(uploads[i].Data) > 0 {
				return &uploads[i]
			}
		}
	}
	return nil
}
