// dump_sample runs the seed, sorts the seeded database in place (plain, then
// natural merge) and dumps the B-tree before and after each sort, writing all
// output to cmd/sample_run_output.txt.
// Run from repo root: go run ./cmd/dump_sample
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"AnimeDB/btree"
	storageengine "AnimeDB/storage_engine"
)

const (
	baseDir    = "databases/anime"
	outputFile = "cmd/sample_run_output.txt"
	sortBatch  = 4
)

func main() {
	outPath := outputFile
	// If run from cmd/dump_sample, output next to binary
	if _, err := os.Stat("cmd"); os.IsNotExist(err) {
		outPath = "sample_run_output.txt"
	}

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	root := repoRoot()
	dataDir := filepath.Join(root, baseDir)

	// 1) Run seed: capture stdout/stderr to file
	fmt.Fprintln(f, "========== SEED (load sample catalogue) ==========")
	cmd := exec.Command("go", "run", "./cmd/seed", "-dir", dataDir)
	cmd.Stdout = f
	cmd.Stderr = f
	cmd.Dir = root
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(f, "seed exited with error: %v\n", err)
		fmt.Printf("Output written to %s\n", outPath)
		return
	}

	treePath := filepath.Join(dataDir, storageengine.TreeFileName)

	// 2) Dump the tree as loaded
	fmt.Fprintln(f, "\n========== INSPECT tree.idx (after load) ==========")
	if err := btree.InspectTreeFileTo(f, treePath, storageengine.DefaultTreeOrder); err != nil {
		fmt.Fprintf(f, "inspect error: %v\n", err)
	}

	// 3) Sort both ways and dump the rebuilt tree
	for _, natural := range []bool{false, true} {
		fmt.Fprintf(f, "\n========== SORT batch=%d natural=%v ==========\n", sortBatch, natural)
		if err := sortOnce(f, dataDir, natural); err != nil {
			fmt.Fprintf(f, "sort error: %v\n", err)
			continue
		}
		fmt.Fprintln(f, "\n========== INSPECT tree.idx (after sort) ==========")
		if err := btree.InspectTreeFileTo(f, treePath, storageengine.DefaultTreeOrder); err != nil {
			fmt.Fprintf(f, "inspect error: %v\n", err)
		}
	}

	fmt.Printf("Output written to %s\n", outPath)
}

func sortOnce(f *os.File, dir string, natural bool) error {
	se, err := storageengine.Open(storageengine.Options{Dir: dir})
	if err != nil {
		return err
	}
	defer se.Close()

	stats, err := se.Sort(sortBatch, natural)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "records=%d initial_runs=%d passes=%d\n", stats.Records, stats.InitialRuns, stats.Passes)
	return nil
}

func repoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
