// Seed program: loads a small anime catalogue into a fresh data directory.
// Run: go run ./cmd/seed
// Then inspect: go run ./cmd/inspect_idx databases/anime/tree.idx
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"AnimeDB/logging"
	storageengine "AnimeDB/storage_engine"
	"AnimeDB/types"
)

// id|name|score|genres|episodes|producers|released
var catalogue = []string{
	`1|Cowboy Bebop|8.78|Action, Adventure, Comedy, Drama, Sci-Fi, Space|26|Bandai Visual|1998-04-03`,
	`5|Cowboy Bebop: Tengoku no Tobira|8.39|Action, Drama, Mystery, Sci-Fi, Space|1|Sunrise, Bandai Visual|2001-09-01`,
	`6|Trigun|8.24|Action, Sci-Fi, Adventure, Comedy, Drama, Shounen|26|Victor Entertainment|1998-04-01`,
	`7|Witch Hunter Robin|7.27|Action, Mystery, Police, Supernatural, Drama, Magic|26|Bandai Visual, Dentsu, Victor Entertainment|2002-07-02`,
	`8|Bouken Ou Beet|6.98|Adventure, Fantasy, Shounen, Supernatural|52|TV Tokyo, Dentsu|2004-09-30`,
	`15|Eyeshield 21|7.95|Action, Sports, Comedy, Shounen|145|TV Tokyo, Nihon Ad Systems|2005-04-06`,
	`16|Hachimitsu to Clover|8.06|Comedy, Drama, Josei, Romance, Slice of Life|24|Genco, Fuji TV|2005-04-15`,
	`17|Hungry Heart: Wild Striker|7.59|Slice of Life, Comedy, Sports, Shounen|52|TV Tokyo, Nihon Ad Systems|2002-09-11`,
	`18|Initial D Fourth Stage|8.15|Action, Cars, Drama, Seinen|24|OB Planning, Studio Jack|2004-04-17`,
	`19|Monster|8.87|Drama, Horror, Mystery, Police, Psychological, Seinen|74|VAP, Nippon Television Network|2004-04-07`,
	`20|Naruto|7.99|Action, Adventure, Comedy, Super Power, Martial Arts, Shounen|220|TV Tokyo, Aniplex, Shueisha|2002-10-03`,
	`21|One Piece|8.52|Action, Adventure, Comedy, Drama, Fantasy, Shounen|1000|Fuji TV, TAP, Shueisha|1999-10-20`,
	`22|Tennis no Ouji-sama|7.91|Action, Comedy, Sports, School, Shounen|178|TV Tokyo, Nihon Ad Systems|2001-10-10`,
	`23|Ring ni Kakero 1|6.38|Action, Shounen, Sports|12|Marvelous|2004-10-06`,
	`24|School Rumble|7.94|Comedy, Romance, School, Shounen|26|TV Tokyo, Marvelous|2004-10-05`,
	`25|Sunabouzu|7.40|Action, Adventure, Comedy, Ecchi, Sci-Fi, Shounen|24|Media Factory, Gonzo|2004-10-05`,
	`26|Texhnolyze|7.76|Action, Sci-Fi, Psychological, Drama|22|Pioneer LDC, Fuji TV|2003-04-17`,
	`27|Trinity Blood|7.32|Action, Supernatural, Vampire|24|Kadokawa Shoten, WOWOW|2005-04-29`,
	`28|Yakitate!! Japan|7.94|Comedy, Shounen|69|Aniplex, Dentsu, Fuji TV|2004-10-12`,
	`29|Zipang|7.47|Action, Military, Sci-Fi, Historical, Drama, Seinen|26|Bandai Visual, Dentsu, Mainichi Broadcasting System|2004-10-08`,
	`30|Neon Genesis Evangelion|8.32|Action, Sci-Fi, Dementia, Psychological, Drama, Mecha|26|TV Tokyo, Fuji Pacific Music Publishing, NAS|1995-10-04`,
	`31|Neon Genesis Evangelion: Death & Rebirth|7.44|Drama, Mecha, Psychological, Sci-Fi|1|Gainax, Production I.G|1997-03-15`,
	`32|Neon Genesis Evangelion: The End of Evangelion|8.51|Sci-Fi, Dementia, Psychological, Drama, Mecha|1|TV Tokyo, Toei Animation, Kadokawa Shoten|1997-07-19`,
	`33|Kenpuu Denki Berserk|8.49|Action, Adventure, Demons, Drama, Fantasy, Horror, Military, Romance, Seinen|25|VAP, Nippon Television Network|1997-10-08`,
	`43|Koukaku Kidoutai|8.29|Action, Mecha, Police, Psychological, Sci-Fi, Seinen|1|Bandai Visual, Manga Entertainment|1995-11-18`,
	`44|Rurouni Kenshin: Tsuiokuhen|8.72|Action, Drama, Historical, Martial Arts, Romance, Samurai|4|Aniplex, SME Visual Works|1999-02-20`,
	`45|Rurouni Kenshin: Meiji Kenkaku Romantan|8.30|Action, Adventure, Comedy, Historical, Romance, Samurai, Shounen|94|Fuji TV, Aniplex, Dentsu|1996-01-10`,
	`47|Akira|8.16|Action, Military, Sci-Fi, Adventure, Horror, Supernatural, Seinen|1|Mainichi Broadcasting System, Kodansha, Bandai Visual|1988-07-16`,
}

func main() {
	dir := flag.String("dir", "databases/anime", "data directory to (re)create")
	order := flag.Int("order", storageengine.DefaultTreeOrder, "B-tree order")
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: "info", Development: true})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// start from an empty directory so the heap header is rewritten
	if err := os.RemoveAll(*dir); err != nil {
		log.Fatalf("clean %s: %v", *dir, err)
	}

	records := make([]types.Record, 0, len(catalogue))
	for _, line := range catalogue {
		rec, err := parseLine(line)
		if err != nil {
			log.Fatalf("catalogue line %q: %v", line, err)
		}
		records = append(records, rec)
	}

	se, err := storageengine.Open(storageengine.Options{Dir: *dir, TreeOrder: *order, Logger: logger})
	if err != nil {
		log.Fatalf("open engine: %v", err)
	}
	defer se.Close()

	if err := se.Load(records); err != nil {
		log.Fatalf("load: %v", err)
	}

	fmt.Printf("Loaded %d records into %s\n", len(records), *dir)

	for _, token := range []string{"Mecha", "Bandai Visual"} {
		recs, err := se.TokenSearch(token)
		if err != nil {
			log.Fatalf("token search %q: %v", token, err)
		}
		fmt.Printf("%-14s %d records\n", token+":", len(recs))
	}
	both, err := se.TokenSearchAnd("Action", "Bandai Visual")
	if err != nil {
		log.Fatalf("and search: %v", err)
	}
	fmt.Printf("%-14s %d records\n", "Action&Bandai:", len(both))

	st, err := se.Stats()
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	fmt.Printf("tree height %d over %d pages, hash depth %d over %d buckets, %d tokens\n",
		st.TreeHeight, st.TreePages, st.HashDepth, st.HashBuckets, st.Tokens)
}

func parseLine(line string) (types.Record, error) {
	idText, rest, ok := strings.Cut(line, "|")
	if !ok {
		return types.Record{}, fmt.Errorf("missing id")
	}
	var id int32
	if _, err := fmt.Sscan(idText, &id); err != nil {
		return types.Record{}, fmt.Errorf("id %q: %w", idText, err)
	}
	return types.ParseRecordFields(id, strings.Split(rest, "|"))
}
