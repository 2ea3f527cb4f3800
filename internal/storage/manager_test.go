// manager_test.go - Tests for storage layer
package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *LocalStore {
	store, err := NewLocalStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	uploadDir := filepath.Join(t.TempDir(), "uploads")

	store, err := NewLocalStore(uploadDir, 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if store.uploadDir != uploadDir {
		t.Errorf("Expected uploadDir %s, got %s", uploadDir, store.uploadDir)
	}
	if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
		t.Error("Expected upload directory to be created")
	}
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)
		content := "MGSV-ish bytes"

		info, err := store.Save("save000.dat", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "save000.dat" {
			t.Errorf("Expected name 'save000.dat', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
		if info.Status != StatusUploaded {
			t.Errorf("Expected status %q, got %q", StatusUploaded, info.Status)
		}

		data, err := store.ReadFile(info.ID)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(data) != content {
			t.Errorf("Expected content %q, got %q", content, data)
		}
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewLocalStore(dir, 4)
		if err != nil {
			t.Fatal(err)
		}

		_, err = store.Save("big.dat", strings.NewReader("12345"))
		if !errors.Is(err, ErrTooLarge) {
			t.Fatalf("Expected ErrTooLarge, got %v", err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("Expected partial file to be removed, found %d entries", len(entries))
		}

		if _, err := store.Save("ok.dat", strings.NewReader("1234")); err != nil {
			t.Errorf("File at the limit should be accepted: %v", err)
		}
	})
}

func TestLocalStore_SaveBytes(t *testing.T) {
	store := createTestStore(t)
	data := []byte{0xe5, 0x63, 0xae, 0x04}

	info, err := store.SaveBytes("global.dat", data)
	if err != nil {
		t.Fatalf("Failed to save bytes: %v", err)
	}

	path, err := store.GetFilePath(info.ID)
	if err != nil {
		t.Fatalf("GetFilePath failed: %v", err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read stored file: %v", err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Errorf("Stored bytes differ: %v", onDisk)
	}

	limited, _ := NewLocalStore(t.TempDir(), 2)
	if _, err := limited.SaveBytes("x", data); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

func TestLocalStore_GetReturnsCopy(t *testing.T) {
	store := createTestStore(t)
	info, _ := store.SaveBytes("a.dat", []byte("a"))

	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.Name = "mutated"

	again, _ := store.Get(info.ID)
	if again.Name != "a.dat" {
		t.Errorf("Get exposed internal state, name is now %q", again.Name)
	}
}

func TestLocalStore_NotFound(t *testing.T) {
	store := createTestStore(t)

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := store.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Rename("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename: expected ErrNotFound, got %v", err)
	}
	if err := store.SetStatus("missing", StatusError); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus: expected ErrNotFound, got %v", err)
	}
	if _, err := store.ReadFile("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadFile: expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_List(t *testing.T) {
	t.Run("sorts by upload time descending", func(t *testing.T) {
		store := createTestStore(t)
		first, _ := store.SaveBytes("first.dat", []byte("1"))
		time.Sleep(5 * time.Millisecond)
		second, _ := store.SaveBytes("second.dat", []byte("2"))

		list, err := store.List(10)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("Expected 2 files, got %d", len(list))
		}
		if list[0].ID != second.ID || list[1].ID != first.ID {
			t.Errorf("Expected newest first, got %s then %s", list[0].Name, list[1].Name)
		}
	})

	t.Run("limits results", func(t *testing.T) {
		store := createTestStore(t)
		for i := 0; i < 5; i++ {
			store.SaveBytes("f.dat", []byte{byte(i)})
		}

		list, _ := store.List(3)
		if len(list) != 3 {
			t.Errorf("Expected 3 files, got %d", len(list))
		}
		all, _ := store.List(0)
		if len(all) != 5 {
			t.Errorf("Expected no limit for 0, got %d files", len(all))
		}
	})
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)
	info, _ := store.SaveBytes("gone.dat", []byte("x"))
	path, _ := store.GetFilePath(info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected physical file to be removed")
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("Expected metadata to be removed")
	}
}

func TestLocalStore_RenameAndStatus(t *testing.T) {
	store := createTestStore(t)
	info, _ := store.SaveBytes("old.dat", []byte("x"))

	renamed, err := store.Rename(info.ID, "new.dat")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if renamed.Name != "new.dat" {
		t.Errorf("Expected new name, got %s", renamed.Name)
	}

	if err := store.SetStatus(info.ID, StatusDecoded); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, _ := store.Get(info.ID)
	if got.Status != StatusDecoded || got.Name != "new.dat" {
		t.Errorf("Unexpected metadata %+v", got)
	}
}

func TestLocalStore_ConcurrentAccess(t *testing.T) {
	store := createTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info, err := store.SaveBytes("c.dat", []byte{byte(i)})
			if err != nil {
				t.Errorf("SaveBytes failed: %v", err)
				return
			}
			store.SetStatus(info.ID, StatusDecoding)
			store.List(5)
		}(i)
	}
	wg.Wait()

	list, _ := store.List(0)
	if len(list) != 20 {
		t.Errorf("Expected 20 files, got %d", len(list))
	}
}
