package stores

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)

	content := []byte("RIFF....WAVEfmt fake audio payload")
	key := "1724900000000_user-1.wav"

	if err := store.Write(key, bytes.NewReader(content)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// 落盘路径与内容一致
	onDisk, err := os.ReadFile(filepath.Join(root, key))
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if !bytes.Equal(onDisk, content) {
		t.Error("stored bytes differ from upload")
	}

	r, size, err := store.Read(key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if !bytes.Equal(got, content) {
		t.Error("read bytes differ from upload")
	}
	if size != int64(len(content)) {
		t.Errorf("size: expected %d, got %d", len(content), size)
	}

	if !store.Exists(key) {
		t.Error("Exists should report true")
	}

	path, cleanup, err := store.Localize(key)
	if err != nil {
		t.Fatalf("Localize failed: %v", err)
	}
	defer cleanup()
	if path != filepath.Join(root, key) {
		t.Errorf("Localize returned %s", path)
	}
}

func TestLocalStoreMissingKey(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	if store.Exists("nope.wav") {
		t.Error("Exists should report false")
	}
	if _, _, err := store.Read("nope.wav"); err == nil {
		t.Error("Read of missing key should fail")
	}
	if _, _, err := store.Localize("nope.wav"); err == nil {
		t.Error("Localize of missing key should fail")
	}
}
