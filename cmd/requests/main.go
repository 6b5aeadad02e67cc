// Command requests sends one or more HTTP/1.1 requests over a shared
// connection and prints the responses.
//
//	requests -X POST -d 'a=1' -H 'X-Trace: 1' https://example.com/form
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/WhileEndless/go-requests/pkg/client"
)

type headerFlags []string

func (h *headerFlags) String() string     { return strings.Join(*h, ", ") }
func (h *headerFlags) Set(v string) error { *h = append(*h, v); return nil }

var (
	method     = flag.String("X", "GET", "Request method")
	data       = flag.String("d", "", "Request body")
	head       = flag.Bool("I", false, "Send HEAD and print only the headers")
	include    = flag.Bool("i", false, "Print the response status line and headers")
	insecure   = flag.Bool("k", false, "Skip TLS certificate verification")
	maxRedirs  = flag.Int("max-redirs", 10, "Maximum number of redirects to follow, 0 disables redirects")
	timeout    = flag.Duration("timeout", 10*time.Second, "Connect timeout")
	readTO     = flag.Duration("read-timeout", 0, "Per read timeout, 0 for none")
	output     = flag.String("o", "", "Write the body of the last URL to this file instead of stdout")
	memLimit   = flag.Int64("mem-limit", 4<<20, "Body bytes kept in memory before spilling to disk")
	verbose    = flag.Bool("v", false, "Log connection activity to stderr")
	showTiming = flag.Bool("timing", false, "Print request timings to stderr")
	headers    headerFlags
)

func main() {
	flag.Var(&headers, "H", "Extra request header, may be repeated")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: requests [flags] URL [URL...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "requests:", err)
		os.Exit(1)
	}
}

func run(urls []string) error {
	opts := client.DefaultOptions()
	opts.ConnTimeout = *timeout
	opts.ReadTimeout = *readTO
	opts.InsecureTLS = *insecure
	opts.MaxRedirects = *maxRedirs
	opts.FollowRedirects = *maxRedirs > 0
	opts.BodyMemLimit = *memLimit
	if *verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	c, err := client.New(opts)
	if err != nil {
		return err
	}

	m := strings.ToUpper(*method)
	if *head {
		m = "HEAD"
	}
	var block string
	for _, h := range headers {
		block += h + "\r\n"
	}

	ctx := context.Background()
	var h *client.Handle
	defer func() { h.Close() }()

	for i, url := range urls {
		h, err = c.Do(ctx, h, m, url, []byte(*data), block)
		if err != nil {
			return err
		}

		if *include || *head {
			h.WriteHeaders(os.Stdout)
			fmt.Println()
		}

		if i == len(urls)-1 && *output != "" {
			if err := saveBody(h, *output); err != nil {
				return err
			}
		} else if _, err := io.Copy(os.Stdout, h); err != nil {
			return err
		}

		if h.Truncated() {
			fmt.Fprintf(os.Stderr, "requests: body truncated after %d bytes\n", h.BytesRead())
		}
		if *showTiming {
			fmt.Fprintln(os.Stderr, h.Metrics().String())
		}
	}
	return nil
}

func saveBody(h *client.Handle, path string) error {
	buf, err := h.ReadAll(*memLimit)
	if err != nil {
		return err
	}
	defer buf.Close()

	r, err := buf.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
