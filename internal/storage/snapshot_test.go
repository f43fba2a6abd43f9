package storage

import "testing"

func testSnapshot(t *testing.T, db interface {
	DB
	Snapshotter
}) {
	t.Helper()

	if err := db.Put([]byte("snap/a"), []byte("before")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	snap := db.NewSnapshot()
	defer snap.Close()

	if err := db.Put([]byte("snap/a"), []byte("after")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put([]byte("snap/b"), []byte("new")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := snap.Get([]byte("snap/a"))
	if err != nil || string(got) != "before" {
		t.Errorf("snapshot Get(snap/a) = %q, %v, want %q unaffected by later write", got, err, "before")
	}
	if ok, _ := snap.Has([]byte("snap/b")); ok {
		t.Error("snapshot should not see a key written after it was taken")
	}

	count := 0
	if err := snap.ForEach([]byte("snap/"), func(key, value []byte) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if count != 1 {
		t.Errorf("snapshot ForEach saw %d keys, want 1 (post-snapshot write excluded)", count)
	}

	live, err := db.Get([]byte("snap/a"))
	if err != nil || string(live) != "after" {
		t.Errorf("live db Get(snap/a) = %q, %v, want %q", live, err, "after")
	}
}

func TestMemoryDB_Snapshot(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testSnapshot(t, db)
}

func TestBadgerDB_Snapshot(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	defer db.Close()
	testSnapshot(t, db)
}
