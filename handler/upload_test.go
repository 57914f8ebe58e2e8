package handler

import "testing"

func TestUploadStorePutThenTake(t *testing.T) {
	store := NewUploadStore()
	id := store.Put("u1", "report.pdf", []byte("hello world"))

	name, data, ok := store.Take("u1", id)
	if !ok {
		t.Fatal("expected stored file to be found")
	}
	if name != "report.pdf" || string(data) != "hello world" {
		t.Fatalf("unexpected file: name=%q data=%q", name, data)
	}
}

func TestUploadStoreTakeIsOneShot(t *testing.T) {
	store := NewUploadStore()
	id := store.Put("u1", "a.txt", []byte("x"))

	if _, _, ok := store.Take("u1", id); !ok {
		t.Fatal("expected first take to succeed")
	}
	if _, _, ok := store.Take("u1", id); ok {
		t.Fatal("expected second take of the same id to fail")
	}
}

func TestUploadStoreUnknownIDNotFound(t *testing.T) {
	store := NewUploadStore()
	if _, _, ok := store.Take("u1", "nonexistent"); ok {
		t.Fatal("expected unknown id to not be found")
	}
}

func TestUploadStoreContentAddressedSamePayloadSameID(t *testing.T) {
	store := NewUploadStore()
	id1 := store.Put("u1", "a.txt", []byte("same bytes"))
	store2 := NewUploadStore()
	id2 := store2.Put("u1", "b.txt", []byte("same bytes"))

	if id1 != id2 {
		t.Fatalf("expected identical content to produce identical ids, got %q and %q", id1, id2)
	}
}
