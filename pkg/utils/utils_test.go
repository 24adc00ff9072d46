package utils

import (
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/context"
)

func TestNewULIDFromTimestamp(t *testing.T) {
	u := New()

	first, err := u.NewULIDFromTimestamp(time.Now())
	if err != nil {
		t.Fatalf("NewULIDFromTimestamp: %v", err)
	}
	if len(first) != 26 {
		t.Fatalf("ULID length = %d, want 26", len(first))
	}

	second, err := u.NewULIDFromTimestamp(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("two ULIDs collided")
	}
}

func TestHashImage(t *testing.T) {
	u := New()

	a := u.HashImage([]byte("image-a"))
	b := u.HashImage([]byte("image-b"))

	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Fatal("different payloads produced the same hash")
	}
	if a != u.HashImage([]byte("image-a")) {
		t.Fatal("hash is not deterministic")
	}
}

func TestValidateImageFile(t *testing.T) {
	u := New()

	header := func(contentType string, size int64) *multipart.FileHeader {
		return &multipart.FileHeader{
			Filename: "photo.jpg",
			Size:     size,
			Header:   textproto.MIMEHeader{"Content-Type": []string{contentType}},
		}
	}

	tests := []struct {
		name    string
		file    *multipart.FileHeader
		wantErr bool
	}{
		{"nil file", nil, true},
		{"valid jpeg", header("image/jpeg", 1024), false},
		{"valid png", header("image/png", 1024), false},
		{"not an image", header("application/pdf", 1024), true},
		{"too large", header("image/jpeg", 6*1024*1024), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := u.ValidateImageFile(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateImageFile error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchImage(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write(payload)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	u := New()
	ctx := context.Background()

	data, err := u.FetchImage(ctx, server.URL+"/ok")
	if err != nil {
		t.Fatalf("FetchImage: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatal("fetched payload does not match")
	}

	if _, err := u.FetchImage(ctx, server.URL+"/missing"); err == nil {
		t.Fatal("FetchImage accepted a 404")
	}
	if _, err := u.FetchImage(ctx, server.URL+"/empty"); err == nil {
		t.Fatal("FetchImage accepted an empty body")
	}
	if _, err := u.FetchImage(ctx, "ftp://example.com/a.jpg"); err == nil {
		t.Fatal("FetchImage accepted a non-http scheme")
	}
}

func TestConvertFileToBase64(t *testing.T) {
	u := New()

	got, err := u.ConvertFileToBase64(nopFile{strings.NewReader("hello")})
	if err != nil {
		t.Fatalf("ConvertFileToBase64: %v", err)
	}
	if got != "aGVsbG8=" {
		t.Fatalf("base64 = %q", got)
	}
}

type nopFile struct {
	*strings.Reader
}

func (nopFile) Close() error { return nil }
