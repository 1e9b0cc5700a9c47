package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"irma.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/irma.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	x := fs.Int("x", 0, "cell x (cells)")
	y := fs.Int("y", 0, "cell y (cells)")
	_ = fs.Parse(args)

	q := "ticks"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "irma.sqlite")
	}
	if *limit <= 0 {
		*limit = 20
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()
	ctx := context.Background()

	switch q {
	case "ticks":
		rows, err := r.Ticks(ctx, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, t := range rows {
			printJSON(struct {
				Tick    uint64 `json:"tick"`
				Digest  string `json:"digest"`
				VMs     int    `json:"vms"`
				Worked  int    `json:"worked"`
				Spawned int    `json:"spawned"`
				Culled  int    `json:"culled"`
				Energy  int64  `json:"energy"`
				Atoms   int    `json:"atoms"`
			}{t.Tick, t.Digest, t.VMs, t.Worked, t.Spawned, t.Culled, t.Energy, t.Atoms})
		}

	case "cells":
		rows, err := r.CellHistory(ctx, *x, *y, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, w := range rows {
			printJSON(struct {
				Tick uint64 `json:"tick"`
				Seq  int    `json:"seq"`
				Offs int    `json:"offs"`
				Raw  uint16 `json:"raw"`
				Atom string `json:"atom"`
			}{w.Tick, w.Seq, w.Offs, uint16(w.Atom), w.Atom.String()})
		}

	case "tuning":
		digest, raw, err := r.Tuning(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		fmt.Println(digest)
		fmt.Println(raw)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}
