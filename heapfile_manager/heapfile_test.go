package heapfile

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"AnimeDB/types"
)

func newTestHeap(t *testing.T) *HeapFile {
	t.Helper()
	hf, err := Open(filepath.Join(t.TempDir(), "records.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open heap file: %v", err)
	}
	t.Cleanup(func() { hf.Close() })
	return hf
}

func testRecords() []types.Record {
	day := time.Date(2001, time.April, 3, 0, 0, 0, 0, time.UTC)
	return []types.Record{
		{ID: 1, Name: "Cowboy Bebop", Score: 8.78, Genres: []string{"Action", "Sci-Fi"}, Episodes: 26, Producers: []string{"Bandai Visual"}, Released: day},
		{ID: 5, Name: "Trigun", Score: 8.22, Genres: []string{"Action", "Comedy"}, Episodes: 26, Producers: []string{"Victor Entertainment"}, Released: day},
		{ID: 6, Name: "Witch Hunter Robin", Score: 7.25, Genres: []string{"Mystery"}, Episodes: 26, Producers: []string{"Bandai Visual", "Dentsu"}, Released: day},
		{ID: 7, Name: "Monster", Score: 8.87, Genres: []string{"Drama", "Mystery"}, Episodes: 74, Producers: []string{"VAP"}, Released: day},
	}
}

func TestHeapFileOperations(t *testing.T) {
	hf := newTestHeap(t)
	records := testRecords()

	offsets, err := hf.Initialize(records)
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	if len(offsets) != len(records) {
		t.Fatalf("Expected %d offsets, got %d", len(records), len(offsets))
	}
	if offsets[0] != HeaderSize {
		t.Errorf("First slot should start right after the header, got %d", offsets[0])
	}
	if hf.LastID() != 7 {
		t.Errorf("Header should hold the highest id 7, got %d", hf.LastID())
	}

	for i, r := range records {
		e, ok, err := hf.Get(r.ID)
		if err != nil {
			t.Fatalf("Get(%d): %v", r.ID, err)
		}
		if !ok {
			t.Fatalf("Get(%d): not found", r.ID)
		}
		if e.Offset != offsets[i] {
			t.Errorf("Get(%d) offset %d, want %d", r.ID, e.Offset, offsets[i])
		}
		if !e.Record.Equal(r) {
			t.Errorf("Get(%d) mismatch:\n  want %+v\n  got  %+v", r.ID, r, e.Record)
		}

		byOffset, ok, err := hf.ReadAt(offsets[i])
		if err != nil || !ok {
			t.Fatalf("ReadAt(%d): ok=%v err=%v", offsets[i], ok, err)
		}
		if !byOffset.Equal(r) {
			t.Errorf("ReadAt(%d) mismatch", offsets[i])
		}
	}

	if _, ok, err := hf.Get(2); err != nil || ok {
		t.Errorf("Get(2) should be absent, ok=%v err=%v", ok, err)
	}
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	hf := newTestHeap(t)
	if _, err := hf.Initialize(testRecords()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	start := hf.LastID()

	for i := int32(1); i <= 5; i++ {
		e, err := hf.Insert(types.Record{ID: 999, Name: "new", Episodes: i})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if e.Record.ID != start+i {
			t.Errorf("insert %d got id %d, want %d", i, e.Record.ID, start+i)
		}
		got, ok, err := hf.Get(e.Record.ID)
		if err != nil || !ok {
			t.Fatalf("Get(%d): ok=%v err=%v", e.Record.ID, ok, err)
		}
		if got.Offset != e.Offset {
			t.Errorf("inserted record found at %d, insert reported %d", got.Offset, e.Offset)
		}
	}
	if hf.LastID() != start+5 {
		t.Errorf("header %d, want %d", hf.LastID(), start+5)
	}
}

func TestInsertRefusesIDOverflow(t *testing.T) {
	hf := newTestHeap(t)
	top := types.Record{ID: math.MaxInt32, Name: "last"}
	if _, err := hf.Initialize([]types.Record{top}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	size := hf.Size()

	if _, err := hf.Insert(types.Record{Name: "one too many"}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if hf.LastID() != math.MaxInt32 || hf.Size() != size {
		t.Errorf("failed insert changed the file: last id %d, size %d (was %d)", hf.LastID(), hf.Size(), size)
	}
}

func TestInsertStoresWholeSeconds(t *testing.T) {
	hf := newTestHeap(t)
	released := time.Date(2004, time.October, 5, 21, 30, 15, 987654321, time.UTC)

	e, err := hf.Insert(types.Record{Name: "precise", Released: released})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if want := released.Truncate(time.Second); !e.Record.Released.Equal(want) {
		t.Errorf("insert returned %v, want %v", e.Record.Released, want)
	}

	got, ok, err := hf.Get(e.Record.ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !got.Record.Equal(e.Record) {
		t.Errorf("stored record differs from the one insert returned:\n got %+v\nwant %+v", got.Record, e.Record)
	}
}

func TestHeaderPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	hf, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := hf.Insert(types.Record{Name: "a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := hf.Insert(types.Record{Name: "b"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := hf.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.LastID() != 2 {
		t.Fatalf("expected header 2 after reopen, got %d", reopened.LastID())
	}
	e, err := reopened.Insert(types.Record{Name: "c"})
	if err != nil {
		t.Fatalf("insert after reopen: %v", err)
	}
	if e.Record.ID != 3 {
		t.Errorf("expected id 3, got %d", e.Record.ID)
	}
}

func TestUpdateInPlaceKeepsOffset(t *testing.T) {
	hf := newTestHeap(t)
	offsets, err := hf.Initialize(testRecords())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// unchanged content
	same := testRecords()[1]
	res, ok, err := hf.Update(same)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if res.Relocated || res.NewOffset != offsets[1] {
		t.Errorf("no-op update moved the record: %+v", res)
	}

	// shorter content fits in the old slot
	shorter := same
	shorter.Name = "Tri"
	res, ok, err = hf.Update(shorter)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if res.Relocated || res.NewOffset != offsets[1] {
		t.Errorf("shrinking update moved the record: %+v", res)
	}
	if !res.Old.Record.Equal(same) {
		t.Errorf("update should report the previous record")
	}

	got, ok, err := hf.Get(same.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Record.Equal(shorter) {
		t.Errorf("get after update: %+v", got.Record)
	}

	// neighbours still decode, so the slot size was preserved
	for _, r := range testRecords()[2:] {
		if _, ok, err := hf.Get(r.ID); err != nil || !ok {
			t.Errorf("Get(%d) after in-place update: ok=%v err=%v", r.ID, ok, err)
		}
	}
}

func TestUpdateRelocatesLargerRecord(t *testing.T) {
	hf := newTestHeap(t)
	offsets, err := hf.Initialize(testRecords())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sizeBefore := hf.Size()

	bigger := testRecords()[0]
	bigger.Genres = append(bigger.Genres, "Space", "Adventure", "Drama")
	res, ok, err := hf.Update(bigger)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if !res.Relocated {
		t.Fatalf("expected relocation")
	}
	if res.NewOffset != sizeBefore {
		t.Errorf("relocated record should be appended at %d, got %d", sizeBefore, res.NewOffset)
	}

	if _, ok, err := hf.ReadAt(offsets[0]); err != nil || ok {
		t.Errorf("old slot should be a tombstone: ok=%v err=%v", ok, err)
	}
	got, ok, err := hf.Get(bigger.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Offset != res.NewOffset || !got.Record.Equal(bigger) {
		t.Errorf("get after relocation returned %+v at %d", got.Record, got.Offset)
	}

	st, err := hf.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ValidSlots != 4 || st.DeletedSlots != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	hf := newTestHeap(t)
	if _, err := hf.Initialize(testRecords()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, ok, err := hf.Update(types.Record{ID: 42, Name: "ghost"}); err != nil || ok {
		t.Errorf("update of a missing id: ok=%v err=%v", ok, err)
	}
}

func TestDeleteVisibility(t *testing.T) {
	hf := newTestHeap(t)
	if _, err := hf.Initialize(testRecords()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	sizeBefore := hf.Size()

	e, ok, err := hf.Delete(6)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if e.Record.ID != 6 {
		t.Errorf("delete reported record %d", e.Record.ID)
	}
	if _, ok, err := hf.Get(6); err != nil || ok {
		t.Errorf("deleted record still visible: ok=%v err=%v", ok, err)
	}
	if _, ok, err := hf.Delete(6); err != nil || ok {
		t.Errorf("second delete should fail: ok=%v err=%v", ok, err)
	}
	if hf.Size() != sizeBefore {
		t.Errorf("delete must not reclaim bytes: %d -> %d", sizeBefore, hf.Size())
	}

	// the record after the tombstone is still reachable
	if _, ok, err := hf.Get(7); err != nil || !ok {
		t.Errorf("Get(7) past tombstone: ok=%v err=%v", ok, err)
	}
}

func TestScanSkipsTombstones(t *testing.T) {
	hf := newTestHeap(t)
	if _, err := hf.Initialize(testRecords()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, _, err := hf.Delete(5); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var ids []int32
	err := hf.Scan(func(e Entry) error {
		ids = append(ids, e.Record.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []int32{1, 6, 7}
	if len(ids) != len(want) {
		t.Fatalf("scan returned %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("scan returned %v, want %v", ids, want)
		}
	}
}

func TestTruncateAndAppendRaw(t *testing.T) {
	hf := newTestHeap(t)
	if _, err := hf.Initialize(testRecords()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := hf.Truncate(); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if hf.LastID() != 7 {
		t.Errorf("truncate must keep the header, got %d", hf.LastID())
	}

	payload, err := types.EncodeRecord(testRecords()[3])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	off, err := hf.AppendRaw(payload)
	if err != nil {
		t.Fatalf("append raw: %v", err)
	}
	if off != HeaderSize {
		t.Errorf("first raw slot at %d, want %d", off, HeaderSize)
	}
	if e, ok, err := hf.Get(7); err != nil || !ok || e.Offset != off {
		t.Errorf("Get(7) after AppendRaw: %+v ok=%v err=%v", e, ok, err)
	}
}

func TestCorruptSlotSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	hf, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := hf.Initialize(testRecords()[:1]); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	hf.Close()

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	// size field of the first slot claims far more bytes than the file holds
	if _, err := f.WriteAt([]byte{0x7f, 0, 0, 0}, HeaderSize+1); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	f.Close()

	hf, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer hf.Close()

	if _, _, err := hf.Get(1); !errors.Is(err, types.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
