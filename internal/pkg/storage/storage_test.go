package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

func TestNewFromDriver_Unknown(t *testing.T) {
	_, err := NewFromDriver(context.Background(), "ftp", FactoryOptions{})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v, want ErrUnknownDriver", err)
	}
}

func TestPresignOptions_ContentDisposition(t *testing.T) {
	if got := (PresignOptions{}).contentDisposition(); got != "" {
		t.Fatalf("empty filename rendered %q", got)
	}
	got := PresignOptions{Filename: "govault-export-2026-06-01.json"}.contentDisposition()
	if got != "attachment; filename=govault-export-2026-06-01.json" {
		t.Fatalf("contentDisposition() = %q", got)
	}
}

func newOfflineGCS(t *testing.T, accessID string, key []byte) *GCSAdapter {
	t.Helper()

	client, err := gcs.NewClient(context.Background(), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("gcs client: %v", err)
	}

	g, err := NewGCS(context.Background(), GCSOptions{Client: client, GoogleAccessID: accessID, PrivateKey: key})
	if err != nil {
		t.Fatalf("NewGCS: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGCS_PresignGet(t *testing.T) {
	ctx := context.Background()

	t.Run("without signer", func(t *testing.T) {
		g := newOfflineGCS(t, "", nil)
		_, err := g.PresignGet(ctx, "exports", "a.json", PresignOptions{Expiry: time.Minute})
		if !errors.Is(err, ErrMissingSigner) {
			t.Fatalf("err = %v, want ErrMissingSigner", err)
		}
	})

	t.Run("rejects zero expiry", func(t *testing.T) {
		g := newOfflineGCS(t, "", nil)
		_, err := g.PresignGet(ctx, "exports", "a.json", PresignOptions{})
		if !errors.Is(err, ErrInvalidExpiry) {
			t.Fatalf("err = %v, want ErrInvalidExpiry", err)
		}
	})

	t.Run("signs with download name", func(t *testing.T) {
		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("rsa: %v", err)
		}
		pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})

		g := newOfflineGCS(t, "exporter@govault.iam.gserviceaccount.com", pemKey)
		raw, err := g.PresignGet(ctx, "exports", "exports/7/1.json", PresignOptions{
			Expiry:   15 * time.Minute,
			Filename: "vault.json",
		})
		if err != nil {
			t.Fatalf("PresignGet: %v", err)
		}

		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		q := u.Query()
		// the signer measures the lifetime against its own clock, which
		// may have moved past the second the expiry was computed from
		secs, err := strconv.Atoi(q.Get("X-Goog-Expires"))
		if err != nil || secs < 899 || secs > 900 {
			t.Fatalf("X-Goog-Expires = %q", q.Get("X-Goog-Expires"))
		}
		if q.Get("response-content-disposition") != "attachment; filename=vault.json" {
			t.Fatalf("content disposition = %q", q.Get("response-content-disposition"))
		}
	})
}
