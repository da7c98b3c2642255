package media

import (
	"context"
	"errors"
	"testing"

	"github.com/RiosWesley/whatsapp-mkauth/internal/fields"
	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
)

type fakeFetcher struct {
	urls []string
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestResolveUpload(t *testing.T) {
	fetch := &fakeFetcher{}
	r := NewResolver(fetch)

	m, err := r.Resolve(context.Background(), model.KindImage, Request{
		Fields:  fields.Payload{"legenda": "boleto", "url": "http://ignored"},
		Uploads: []Upload{{Field: "file", Filename: "photo.jpg", MimeType: "image/jpeg", Data: []byte{1, 2}}},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if m.Filename != "photo.jpg" || m.MimeType != "image/jpeg" || m.Caption != "boleto" {
		t.Errorf("media = %+v", m)
	}
	if len(fetch.urls) != 0 {
		t.Errorf("upload present, but fetcher was called with %v", fetch.urls)
	}
}

func TestResolveUploadFieldPerKind(t *testing.T) {
	r := NewResolver(&fakeFetcher{})
	req := Request{Uploads: []Upload{{Field: "document", Data: []byte("%PDF")}}}

	if _, err := r.Resolve(context.Background(), model.KindImage, req); !errors.Is(err, ErrSourceRequired) {
		t.Errorf("image with only a document upload: error = %v, want ErrSourceRequired", err)
	}

	m, err := r.Resolve(context.Background(), model.KindDocument, req)
	if err != nil {
		t.Fatal(err)
	}
	if m.Filename != "document.pdf" || m.MimeType != "application/pdf" {
		t.Errorf("upload without metadata should keep defaults, got %+v", m)
	}
}

func TestResolveUploadAliasPriority(t *testing.T) {
	r := NewResolver(&fakeFetcher{})
	orders := [][]Upload{
		{{Field: "file", Filename: "generic.png", Data: []byte{1}}, {Field: "image", Filename: "named.png", Data: []byte{2}}},
		{{Field: "image", Filename: "named.png", Data: []byte{2}}, {Field: "file", Filename: "generic.png", Data: []byte{1}}},
	}
	for _, uploads := range orders {
		m, err := r.Resolve(context.Background(), model.KindImage, Request{Uploads: uploads})
		if err != nil {
			t.Fatal(err)
		}
		if m.Filename != "named.png" {
			t.Errorf("uploads %s,%s resolved %q, want the image field", uploads[0].Field, uploads[1].Field, m.Filename)
		}
	}
}

func TestResolveURL(t *testing.T) {
	fetch := &fakeFetcher{data: []byte("png")}
	r := NewResolver(fetch)

	m, err := r.Resolve(context.Background(), model.KindImage, Request{
		Fields: fields.Payload{"link": "http://cdn/x.png", "nome": "fatura.png"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(m.Data) != "png" || m.Filename != "fatura.png" || m.MimeType != "image/png" {
		t.Errorf("media = %+v", m)
	}
	if len(fetch.urls) != 1 || fetch.urls[0] != "http://cdn/x.png" {
		t.Errorf("fetched %v", fetch.urls)
	}
}

func TestResolveDocumentDefaults(t *testing.T) {
	r := NewResolver(&fakeFetcher{data: []byte("%PDF")})
	m, err := r.Resolve(context.Background(), model.KindDocument, Request{
		Fields: fields.Payload{"document": "http://cdn/boleto"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Filename != "document.pdf" || m.MimeType != "application/pdf" {
		t.Errorf("defaults = %+v", m)
	}
}

func TestResolveSourceRequired(t *testing.T) {
	fetch := &fakeFetcher{}
	r := NewResolver(fetch)
	_, err := r.Resolve(context.Background(), model.KindImage, Request{Fields: fields.Payload{"to": "1"}})
	if !errors.Is(err, ErrSourceRequired) {
		t.Fatalf("error = %v, want ErrSourceRequired", err)
	}
}

func TestResolveFetchError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewResolver(&fakeFetcher{err: boom})
	_, err := r.Resolve(context.Background(), model.KindDocument, Request{Fields: fields.Payload{"url": "http://down"}})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped fetch error", err)
	}
	if errors.Is(err, ErrSourceRequired) {
		t.Error("fetch failure must not look like a missing source")
	}
}
