// Inspect a B-tree index file (tree.idx).
// Usage: go run ./cmd/inspect_idx [-order N] <path-to-tree.idx>
// Example: go run ./cmd/inspect_idx databases/anime/tree.idx
package main

import (
	"flag"
	"fmt"
	"os"

	"AnimeDB/btree"
	storageengine "AnimeDB/storage_engine"
)

func main() {
	order := flag.Int("order", storageengine.DefaultTreeOrder, "order the tree was written with")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-order N] <tree.idx>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s databases/anime/tree.idx\n", os.Args[0])
		os.Exit(1)
	}
	path := flag.Arg(0)
	if err := btree.InspectTreeFile(path, *order); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
