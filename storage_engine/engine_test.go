package storageengine

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"AnimeDB/btree"
	heapfile "AnimeDB/heapfile_manager"
	"AnimeDB/types"
)

var (
	genrePool    = []string{"Action", "Comedy", "Drama", "Sci-Fi", "Romance", "Mystery"}
	producerPool = []string{"Aniplex", "Bandai Visual", "Sunrise", "Madhouse"}
)

func newTestEngine(t *testing.T, dir string) *StorageEngine {
	t.Helper()
	se, err := Open(Options{Dir: dir, TreeOrder: 3, HashGlobalDepth: -1, CacheMaxCost: 1 << 16})
	if err != nil {
		t.Fatalf("Failed to open engine: %v", err)
	}
	t.Cleanup(func() { se.Close() })
	return se
}

func sampleRecords(n int) []types.Record {
	out := make([]types.Record, n)
	for i := range out {
		id := int32(i + 1)
		out[i] = types.Record{
			ID:        id,
			Name:      fmt.Sprintf("Series %03d", id),
			Score:     float32(id%10) + 0.5,
			Genres:    []string{genrePool[i%len(genrePool)], genrePool[(i+2)%len(genrePool)]},
			Episodes:  int32((i * 7) % 50),
			Producers: []string{producerPool[i%len(producerPool)]},
			Released:  time.Date(1990+i%30, time.Month(1+i%12), 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func heapOrder(t *testing.T, se *StorageEngine) []types.Record {
	t.Helper()
	var out []types.Record
	if err := se.Heap.Scan(func(e heapfile.Entry) error {
		out = append(out, e.Record)
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

// checkLookups verifies that every lookup path agrees on rec.
func checkLookups(t *testing.T, se *StorageEngine, rec types.Record) {
	t.Helper()
	for name, lookup := range map[string]func(int32) (types.Record, bool, error){
		"get":  se.Get,
		"tree": se.TreeSearch,
		"hash": se.HashSearch,
	} {
		got, ok, err := lookup(rec.ID)
		if err != nil || !ok {
			t.Fatalf("%s(%d): ok=%v err=%v", name, rec.ID, ok, err)
		}
		if !got.Equal(rec) {
			t.Fatalf("%s(%d) = %+v, want %+v", name, rec.ID, got, rec)
		}
	}
}

func checkMissing(t *testing.T, se *StorageEngine, id int32) {
	t.Helper()
	for name, lookup := range map[string]func(int32) (types.Record, bool, error){
		"get":  se.Get,
		"tree": se.TreeSearch,
		"hash": se.HashSearch,
	} {
		if _, ok, err := lookup(id); err != nil || ok {
			t.Errorf("%s(%d) on missing id: ok=%v err=%v", name, id, ok, err)
		}
	}
}

func idsOf(recs []types.Record) []int32 {
	out := make([]int32, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestOpenValidatesOptions(t *testing.T) {
	cases := []Options{
		{},
		{Dir: t.TempDir(), TreeOrder: 2},
		{Dir: t.TempDir(), TreeOrder: 300},
		{Dir: t.TempDir(), HashGlobalDepth: 17},
		{Dir: t.TempDir(), HashGlobalDepth: 5, MaxHashDepth: 4},
		{Dir: t.TempDir(), MaxHashDepth: 32},
		{Dir: t.TempDir(), MaxHashDepth: -3},
	}
	for _, opts := range cases {
		if _, err := Open(opts); !errors.Is(err, types.ErrInvalidArgument) {
			t.Errorf("Open(%+v): expected ErrInvalidArgument, got %v", opts, err)
		}
	}
}

func TestHashDepthDefaults(t *testing.T) {
	cases := []struct {
		depth, maxDepth         int
		wantDepth, wantMaxDepth int
	}{
		{0, 0, DefaultHashGlobalDepth, DefaultMaxHashDepth},
		{-1, 0, 0, DefaultMaxHashDepth},
		{4, 6, 4, 6},
	}
	for _, tc := range cases {
		se, err := Open(Options{Dir: t.TempDir(), HashGlobalDepth: tc.depth, MaxHashDepth: tc.maxDepth})
		if err != nil {
			t.Fatalf("open depth %d: %v", tc.depth, err)
		}
		if se.Hash.GlobalDepth() != tc.wantDepth || se.Hash.MaxDepth() != tc.wantMaxDepth {
			t.Errorf("depth %d max %d: got depth %d max %d, want %d and %d", tc.depth, tc.maxDepth,
				se.Hash.GlobalDepth(), se.Hash.MaxDepth(), tc.wantDepth, tc.wantMaxDepth)
		}
		se.Close()
	}
}

func TestLoadAndLookupPaths(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	records := sampleRecords(80)
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, r := range records {
		checkLookups(t, se, r)
	}
	checkMissing(t, se, 0)
	checkMissing(t, se, 81)

	stats, err := se.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Heap.ValidSlots != 80 || stats.TreeHeight < 2 || stats.HashDepth == 0 {
		t.Errorf("indexes should have split and doubled: %+v", stats)
	}
	if stats.CacheHits+stats.CacheMisses == 0 {
		t.Errorf("index lookups should go through the page cache: %+v", stats)
	}
	if stats.Tokens != len(genrePool)+len(producerPool) {
		t.Errorf("expected %d tokens, got %d", len(genrePool)+len(producerPool), stats.Tokens)
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	records := sampleRecords(3)
	records[2].ID = 1
	if err := se.Load(records); !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLoadRejectsIDsNeedingDeepDirectory(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	records := sampleRecords(5)
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}

	var skewed []types.Record
	for i := int32(0); i < 8; i++ {
		skewed = append(skewed, types.Record{ID: i << 22, Name: fmt.Sprintf("skewed %d", i)})
	}
	err := se.Load(skewed)
	if !errors.Is(err, types.ErrInvalidArgument) || errors.Is(err, types.ErrIndexInconsistent) {
		t.Fatalf("expected a plain ErrInvalidArgument, got %v", err)
	}
	if se.Hash.GlobalDepth() > DefaultMaxHashDepth {
		t.Errorf("directory grew to depth %d", se.Hash.GlobalDepth())
	}

	// the rejected load must leave the earlier records in place and usable
	for _, r := range records {
		checkLookups(t, se, r)
	}
	checkMissing(t, se, 1<<22)
}

func TestInsertKeepsWholeSecondRelease(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	released := time.Date(2006, time.April, 4, 18, 0, 0, 123456789, time.UTC)

	rec, err := se.Insert(types.Record{Name: "Ouran", Genres: []string{"Comedy"}, Released: released})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !rec.Released.Equal(released.Truncate(time.Second)) {
		t.Errorf("insert returned release %v", rec.Released)
	}
	checkLookups(t, se, rec)
}

func TestInsertAssignsNextID(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	if err := se.Load(sampleRecords(10)); err != nil {
		t.Fatalf("load: %v", err)
	}

	for want := int32(11); want <= 13; want++ {
		rec, err := se.Insert(types.Record{ID: 999, Name: "New Show", Genres: []string{"Isekai"}, Episodes: 12})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if rec.ID != want {
			t.Fatalf("inserted id %d, want %d", rec.ID, want)
		}
		checkLookups(t, se, rec)
	}

	got, err := se.TokenSearch("Isekai")
	if err != nil {
		t.Fatalf("token search: %v", err)
	}
	if !slices.Equal(idsOf(got), []int32{11, 12, 13}) {
		t.Errorf("Isekai ids %v", idsOf(got))
	}
}

func TestUpdateInPlaceAndRelocated(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	records := sampleRecords(20)
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}

	// same size: stays in place, a new tag becomes searchable
	small := records[4].Clone()
	small.Name = "Series xyz"
	small.Genres = []string{"Horror", small.Genres[1]}
	ok, err := se.Update(small)
	if err != nil || !ok {
		t.Fatalf("in-place update: ok=%v err=%v", ok, err)
	}
	checkLookups(t, se, small)

	// larger: relocated to the end of the heap
	big := records[7].Clone()
	big.Name = "A considerably longer title than the original one had"
	big.Producers = append(big.Producers, "Kyoto Animation")
	ok, err = se.Update(big)
	if err != nil || !ok {
		t.Fatalf("relocating update: ok=%v err=%v", ok, err)
	}
	checkLookups(t, se, big)

	horror, err := se.TokenSearch("Horror")
	if err != nil || !slices.Equal(idsOf(horror), []int32{small.ID}) {
		t.Errorf("Horror search %v, %v", idsOf(horror), err)
	}
	dropped := records[4].Genres[0]
	tagged, err := se.TokenSearch(dropped)
	if err != nil {
		t.Fatalf("token search: %v", err)
	}
	if slices.Contains(idsOf(tagged), small.ID) {
		t.Errorf("record %d no longer carries %q but was returned", small.ID, dropped)
	}
	kyoto, err := se.TokenSearch("Kyoto Animation")
	if err != nil || !slices.Equal(idsOf(kyoto), []int32{big.ID}) {
		t.Errorf("Kyoto Animation search %v, %v", idsOf(kyoto), err)
	}

	ok, err = se.Update(types.Record{ID: 500, Name: "ghost"})
	if err != nil || ok {
		t.Errorf("update of missing id: ok=%v err=%v", ok, err)
	}
}

func TestDeleteMirrorsIntoIndexes(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	records := sampleRecords(30)
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}

	victim := records[12]
	ok, err := se.Delete(victim.ID)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	checkMissing(t, se, victim.ID)

	for _, token := range victim.Tokens() {
		got, err := se.TokenSearch(token)
		if err != nil {
			t.Fatalf("token search %q: %v", token, err)
		}
		if slices.Contains(idsOf(got), victim.ID) {
			t.Errorf("deleted record returned for %q", token)
		}
	}

	if ok, err := se.Delete(victim.ID); err != nil || ok {
		t.Errorf("second delete: ok=%v err=%v", ok, err)
	}
	checkLookups(t, se, records[13])
}

func TestTokenSearchAnd(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	records := sampleRecords(40)
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}

	var want []int32
	for _, r := range records {
		if slices.Contains(r.Genres, "Action") && slices.Contains(r.Producers, "Sunrise") {
			want = append(want, r.ID)
		}
	}
	if len(want) == 0 {
		t.Fatalf("sample data has no Action/Sunrise overlap")
	}

	got, err := se.TokenSearchAnd("Action", " Sunrise ")
	if err != nil {
		t.Fatalf("and search: %v", err)
	}
	if !slices.Equal(idsOf(got), want) {
		t.Errorf("Action AND Sunrise = %v, want %v", idsOf(got), want)
	}

	if got, err := se.TokenSearchAnd("Action", "Unknown"); err != nil || len(got) != 0 {
		t.Errorf("AND with unknown token: %v, %v", idsOf(got), err)
	}
}

func TestSortRebuildsIndexes(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	for _, ep := range []int32{5, 1, 4, 2, 3} {
		if _, err := se.Insert(types.Record{Name: fmt.Sprintf("ep%d", ep), Genres: []string{"Drama"}, Episodes: ep}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	before := heapOrder(t, se)

	stats, err := se.Sort(2, false)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if stats.Records != 5 {
		t.Errorf("sorted %d records", stats.Records)
	}

	after := heapOrder(t, se)
	var episodes []int32
	for _, r := range after {
		episodes = append(episodes, r.Episodes)
	}
	if !slices.Equal(episodes, []int32{1, 2, 3, 4, 5}) {
		t.Fatalf("episodes after sort %v", episodes)
	}

	// every record moved; lookups must follow
	for _, r := range before {
		checkLookups(t, se, r)
	}
	drama, err := se.TokenSearch("Drama")
	if err != nil || !slices.Equal(idsOf(drama), idsOf(after)) {
		t.Errorf("Drama search after sort %v, %v", idsOf(drama), err)
	}

	rec, err := se.Insert(types.Record{Name: "after sort", Episodes: 0})
	if err != nil || rec.ID != 6 {
		t.Errorf("insert after sort: id=%d err=%v", rec.ID, err)
	}
}

func TestSortOptimizedWithDeletes(t *testing.T) {
	se := newTestEngine(t, t.TempDir())
	records := sampleRecords(45)
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, id := range []int32{3, 9, 27} {
		if ok, err := se.Delete(id); err != nil || !ok {
			t.Fatalf("delete %d: ok=%v err=%v", id, ok, err)
		}
	}

	if _, err := se.Sort(4, true); err != nil {
		t.Fatalf("sort: %v", err)
	}
	after := heapOrder(t, se)
	if len(after) != 42 {
		t.Fatalf("heap holds %d records after sort, want 42", len(after))
	}
	for i := 1; i < len(after); i++ {
		if after[i-1].Episodes > after[i].Episodes {
			t.Fatalf("heap not sorted at %d: %d > %d", i, after[i-1].Episodes, after[i].Episodes)
		}
	}
	for _, r := range records {
		switch r.ID {
		case 3, 9, 27:
			checkMissing(t, se, r.ID)
		default:
			checkLookups(t, se, r)
		}
	}

	if _, err := se.Sort(0, true); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("sort with batch 0: expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := se.Get(1); err != nil {
		t.Errorf("a rejected sort must not poison the engine: %v", err)
	}
}

func TestReopenRebuildsIndexes(t *testing.T) {
	dir := t.TempDir()
	records := sampleRecords(25)

	se, err := Open(Options{Dir: dir, TreeOrder: 3, HashGlobalDepth: 3})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok, err := se.Delete(5); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if err := se.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newTestEngine(t, dir)
	for _, r := range records {
		if r.ID == 5 {
			checkMissing(t, reopened, 5)
			continue
		}
		checkLookups(t, reopened, r)
	}
	rec, err := reopened.Insert(types.Record{Name: "next"})
	if err != nil || rec.ID != 26 {
		t.Errorf("insert after reopen: id=%d err=%v", rec.ID, err)
	}
}

func TestReopenWithAnotherTreeOrder(t *testing.T) {
	dir := t.TempDir()
	records := sampleRecords(40)

	se, err := Open(Options{Dir: dir, TreeOrder: 8})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := se.Load(records); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := se.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, order := range []int{5, 3, 8} {
		reopened, err := Open(Options{Dir: dir, TreeOrder: order, HashGlobalDepth: -1})
		if err != nil {
			t.Fatalf("reopen with order %d: %v", order, err)
		}
		if reopened.Tree.Order() != order {
			t.Errorf("tree order %d, want %d", reopened.Tree.Order(), order)
		}
		for _, r := range records {
			checkLookups(t, reopened, r)
		}
		if err := reopened.Close(); err != nil {
			t.Fatalf("close order %d: %v", order, err)
		}
	}
}

func TestIndexFailureBlocksUntilRebuild(t *testing.T) {
	dir := t.TempDir()
	se := newTestEngine(t, dir)
	if err := se.Load(sampleRecords(10)); err != nil {
		t.Fatalf("load: %v", err)
	}

	// break the tree underneath the engine
	if err := se.Tree.Close(); err != nil {
		t.Fatalf("close tree: %v", err)
	}

	_, err := se.Insert(types.Record{Name: "orphan", Genres: []string{"Action"}})
	if !errors.Is(err, types.ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
	if _, _, err := se.Get(1); !errors.Is(err, types.ErrIndexInconsistent) {
		t.Errorf("engine should refuse work after an index failure, got %v", err)
	}

	tree, err := btree.Open(filepath.Join(dir, TreeFileName), 3, 0, nil)
	if err != nil {
		t.Fatalf("reopen tree: %v", err)
	}
	se.Tree = tree

	if err := se.RebuildIndexes(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	got, ok, err := se.TreeSearch(11)
	if err != nil || !ok || got.Name != "orphan" {
		t.Errorf("record written before the failure should be indexed after rebuild: %+v ok=%v err=%v", got, ok, err)
	}
}
