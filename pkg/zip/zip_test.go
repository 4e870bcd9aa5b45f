package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	data, err := ArchiveAssets([]Asset{
		{Filename: "panel-01.png", MIME: "image/png", Data: []byte{1, 2, 3}},
		{Filename: "panels.txt", MIME: "text/plain", Data: []byte("1. hello\n")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("files = %d, want 2", len(zr.File))
	}
	if zr.File[0].Name != "panel-01.png" || zr.File[1].Name != "panels.txt" {
		t.Fatalf("unexpected order: %s, %s", zr.File[0].Name, zr.File[1].Name)
	}
	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "1. hello\n" {
		t.Fatalf("body = %q", body)
	}
}

func TestArchiveAssetsRejectsBadNames(t *testing.T) {
	if _, err := ArchiveAssets([]Asset{{Filename: ""}}); err == nil {
		t.Fatalf("expected error for empty filename")
	}
	if _, err := ArchiveAssets([]Asset{{Filename: "a"}, {Filename: "a"}}); err == nil {
		t.Fatalf("expected error for duplicate filename")
	}
}
