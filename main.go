package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	extsort "AnimeDB/external_sort"
	"AnimeDB/logging"
	storageengine "AnimeDB/storage_engine"
	"AnimeDB/types"

	"github.com/dustin/go-humanize"
)

const help = `commands:
  get <id>                      linear heap scan
  tree <id>                     lookup through the B-tree
  hash <id>                     lookup through the hash index
  tag <token>                   records carrying a genre or producer
  and <token> | <token>         records carrying both
  insert <record>               record: name|score|genre,genre|episodes|producer,producer|YYYY-MM-DD
  update <id> <record>
  delete <id>
  sort <batch> [natural]        reorder the heap by episode count
  rebuild                       rebuild every index from the heap
  tokens | stats | help | exit`

func main() {
	dir := flag.String("dir", "databases/anime", "data directory")
	order := flag.Int("order", storageengine.DefaultTreeOrder, "B-tree order (3..256)")
	depth := flag.Int("depth", storageengine.DefaultHashGlobalDepth, "initial hash directory depth (0 is a single bucket)")
	maxDepth := flag.Int("max-depth", storageengine.DefaultMaxHashDepth, "hash directory depth limit")
	cacheCost := flag.Int64("cache", storageengine.DefaultCacheMaxCost, "page cache bytes per index file")
	level := flag.String("log-level", "warn", "log level")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: *level, Development: *dev})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Options treats a zero depth as "use the default"
	if *depth == 0 {
		*depth = -1
	}

	se, err := storageengine.Open(storageengine.Options{
		Dir:             *dir,
		TreeOrder:       *order,
		HashGlobalDepth: *depth,
		MaxHashDepth:    *maxDepth,
		CacheMaxCost:    *cacheCost,
		Logger:          logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer se.Close()

	scanner := bufio.NewScanner(os.Stdin)
	// REPL
	for {
		fmt.Print("anime> ")

		if !scanner.Scan() { // Ctrl+D pressed
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "exit") {
			break
		}
		if line == "" {
			continue
		}

		if err := execute(se, line); err != nil {
			fmt.Printf("Error: %v\n", err)
			if errors.Is(err, types.ErrIndexInconsistent) {
				fmt.Println("indexes are out of step with the heap; run 'rebuild'")
			}
		}
	}
}

func execute(se *storageengine.StorageEngine, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "help":
		fmt.Println(help)

	case "get", "tree", "hash":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		lookup := map[string]func(int32) (types.Record, bool, error){
			"get":  se.Get,
			"tree": se.TreeSearch,
			"hash": se.HashSearch,
		}[strings.ToLower(cmd)]
		rec, ok, err := lookup(id)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("record %d not found\n", id)
			return nil
		}
		printRecords(rec)

	case "tag":
		recs, err := se.TokenSearch(rest)
		if err != nil {
			return err
		}
		printRecords(recs...)

	case "and":
		a, b, ok := strings.Cut(rest, "|")
		if !ok {
			return fmt.Errorf("usage: and <token> | <token>")
		}
		recs, err := se.TokenSearchAnd(a, b)
		if err != nil {
			return err
		}
		printRecords(recs...)

	case "insert":
		rec, err := parseRecord(rest)
		if err != nil {
			return err
		}
		stored, err := se.Insert(rec)
		if err != nil {
			return err
		}
		fmt.Printf("inserted record %d\n", stored.ID)

	case "update":
		idText, fields, _ := strings.Cut(rest, " ")
		id, err := parseID(idText)
		if err != nil {
			return err
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return err
		}
		rec.ID = id
		ok, err := se.Update(rec)
		if err != nil {
			return err
		}
		fmt.Printf("updated: %v\n", ok)

	case "delete":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		ok, err := se.Delete(id)
		if err != nil {
			return err
		}
		fmt.Printf("deleted: %v\n", ok)

	case "sort":
		args := strings.Fields(rest)
		if len(args) == 0 {
			return fmt.Errorf("usage: sort <batch> [natural]")
		}
		batch, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("batch size: %w", err)
		}
		natural := len(args) > 1 && strings.EqualFold(args[1], "natural")
		stats, err := se.Sort(batch, natural)
		if err != nil {
			return err
		}
		printSortStats(stats)

	case "rebuild":
		if err := se.RebuildIndexes(); err != nil {
			return err
		}
		fmt.Println("indexes rebuilt")

	case "tokens":
		for _, t := range se.Tokens.Tokens() {
			fmt.Println(" ", t)
		}

	case "stats":
		st, err := se.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("heap:   %d live, %d deleted, %s, last id %d\n",
			st.Heap.ValidSlots, st.Heap.DeletedSlots, humanize.IBytes(uint64(st.Heap.Bytes)), st.Heap.LastID)
		fmt.Printf("tree:   order %d, %d pages, height %d\n", st.TreeOrder, st.TreePages, st.TreeHeight)
		fmt.Printf("hash:   depth %d, %d buckets\n", st.HashDepth, st.HashBuckets)
		fmt.Printf("tokens: %d tokens, %d postings\n", st.Tokens, st.PostingEntries)
		fmt.Printf("cache:  %s hits, %s misses\n", humanize.Comma(int64(st.CacheHits)), humanize.Comma(int64(st.CacheMisses)))

	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return nil
}

func printRecords(recs ...types.Record) {
	if len(recs) == 0 {
		fmt.Println("(no records)")
		return
	}
	for _, r := range recs {
		fmt.Printf("%5d  %-40s  %5.2f  %3d eps  %s  [%s]  [%s]\n",
			r.ID, r.Name, r.Score, r.Episodes, r.Released.Format(types.DateLayout),
			strings.Join(r.Genres, ", "), strings.Join(r.Producers, ", "))
	}
	fmt.Printf("(%d records)\n", len(recs))
}

func printSortStats(st extsort.Stats) {
	fmt.Printf("sorted %s records (%s) from %d runs in %d passes\n",
		humanize.Comma(int64(st.Records)), humanize.IBytes(uint64(st.Bytes)), st.InitialRuns, st.Passes)
}

func parseID(s string) (int32, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad id %q", types.ErrInvalidArgument, s)
	}
	return int32(id), nil
}

// parseRecord reads name|score|genres|episodes|producers|date, with lists
// separated by commas.
func parseRecord(s string) (types.Record, error) {
	fields := strings.Split(s, "|")
	if len(fields) != 6 {
		return types.Record{}, fmt.Errorf("%w: expected 6 fields separated by |, got %d",
			types.ErrInvalidArgument, len(fields))
	}
	return types.ParseRecordFields(0, fields)
}
