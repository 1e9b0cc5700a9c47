package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"irma.ai/internal/observerproto"
	"irma.ai/internal/sim/atom"
	"irma.ai/internal/sim/encoding"
)

func metricsCmd(args []string) {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/metrics"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Print(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

// gridCmd prints the server's grid mirror, one character per cell.
func gridCmd(args []string) {
	fs := flag.NewFlagSet("grid", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/observer/bootstrap"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		fmt.Fprintln(os.Stderr, "status:", resp.Status)
		os.Exit(1)
	}
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	p := b.WorldParams
	cells, err := encoding.DecodeCells(b.Cells, p.Width*p.Height)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cells:", err)
		os.Exit(1)
	}
	fmt.Printf("tick=%d %dx%d digest=%s\n", b.Tick, p.Width, p.Height, b.Digest)
	fmt.Print(renderGrid(cells, p.Width))
}

var glyphs = map[atom.Type]byte{
	atom.TypeEmpty: '.',
	atom.TypeMov:   'm',
	atom.TypeFix:   'f',
	atom.TypeSpl:   's',
	atom.TypeIf:    'i',
	atom.TypeJob:   'j',
}

func renderGrid(cells []atom.Atom, width int) string {
	var sb strings.Builder
	for i, a := range cells {
		g, ok := glyphs[a.Type()]
		if !ok {
			g = '?'
		}
		sb.WriteByte(g)
		if (i+1)%width == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
