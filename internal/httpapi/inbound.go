package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
	"github.com/RiosWesley/whatsapp-mkauth/internal/media"
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errInvalidBody  = errors.New("invalid request body")
)

// inbound is a request decoded into the shapes the rest of the gateway
// reads: body fields, query fields, headers and uploaded files.
type inbound struct {
	Body    fields.Payload
	Query   fields.Payload
	Header  fields.Payload
	Uploads []media.Upload
}

// parseInbound decodes JSON, urlencoded and multipart bodies. Other content
// types yield an empty body.
func parseInbound(w http.ResponseWriter, r *http.Request, maxBytes int64) (*inbound, error) {
	in := &inbound{
		Body:   fields.Payload{},
		Query:  fields.FromValues(r.URL.Query()),
		Header: fields.FromHeader(r.Header),
	}
	if r.Body == nil || r.Body == http.NoBody {
		return in, nil
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		in.Body, err = decodeJSON(r.Body)
	case mediaType == "application/x-www-form-urlencoded":
		if err = r.ParseForm(); err == nil {
			in.Body = fields.FromValues(r.PostForm)
		}
	case mediaType == "multipart/form-data":
		in.Body, in.Uploads, err = decodeMultipart(r, maxBytes)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return in, nil
}

func decodeJSON(body io.Reader) (fields.Payload, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var p fields.Payload
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return fields.Payload{}, nil
		}
		return nil, err
	}
	if p == nil {
		p = fields.Payload{}
	}
	return p, nil
}

func decodeMultipart(r *http.Request, maxBytes int64) (fields.Payload, []media.Upload, error) {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, nil, err
	}
	form := r.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	var uploads []media.Upload
	for field, headers := range form.File {
		for _, fh := range headers {
			data, err := readPart(fh)
			if err != nil {
				return nil, nil, fmt.Errorf("read upload %s: %w", field, err)
			}
			uploads = append(uploads, media.Upload{
				Field:    field,
				Filename: fh.Filename,
				MimeType: fh.Header.Get("Content-Type"),
				Data:     data,
			})
		}
	}
	return fields.FromValues(form.Value), uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
