//go:build !rp2040

// xflash-sim runs the flash engine against an emulated chip and drives it
// from stdin, the way a debug-probe controller would.
//
//	info
//	erase <offset> <length>
//	mass-erase
//	read <offset> <length>
//	write <offset> <hex bytes>
//	fill <offset> <length> <byte>
//	quit
//
// Numbers accept 0x prefixes.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"flashrover-go/internal/norsim"
)

var parts = map[string]norsim.Part{
	"mx25r8035f": norsim.MX25R8035F,
	"mx25r1635f": norsim.MX25R1635F,
	"w25x40cl":   norsim.W25X40CL,
}

func main() {
	part := flag.String("part", "mx25r8035f", "emulated chip")
	proto := flag.String("proto", "doorbell", "protocol generation: doorbell or serial")
	flag.Parse()

	p, ok := parts[strings.ToLower(*part)]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown part:", *part)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t, err := start(ctx, *proto, norsim.New(p))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := repl(ctx, os.Stdin, os.Stdout, t); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func repl(ctx context.Context, in io.Reader, out io.Writer, t target) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		args, err := shlex.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}
		if err := exec(ctx, out, t, args); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func exec(ctx context.Context, out io.Writer, t target, args []string) error {
	nums := func(want int) ([]uint32, error) {
		if len(args)-1 < want {
			return nil, fmt.Errorf("%s: need %d arguments", args[0], want)
		}
		v := make([]uint32, want)
		for i := range v {
			n, err := strconv.ParseUint(args[i+1], 0, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", args[0], err)
			}
			v[i] = uint32(n)
		}
		return v, nil
	}

	switch args[0] {
	case "info":
		manf, dev, size, err := t.Info(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "manufacturer 0x%02X device 0x%02X size %d\n", manf, dev, size)
	case "erase":
		v, err := nums(2)
		if err != nil {
			return err
		}
		if err := t.Erase(ctx, v[0], v[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
	case "mass-erase":
		if err := t.MassErase(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
	case "read":
		v, err := nums(2)
		if err != nil {
			return err
		}
		buf := make([]byte, v[1])
		if err := t.Read(ctx, v[0], buf); err != nil {
			return err
		}
		d := hex.Dumper(out)
		d.Write(buf)
		d.Close()
	case "write":
		v, err := nums(1)
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(strings.Join(args[2:], ""))
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if err := t.Write(ctx, v[0], data); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok", len(data), "bytes")
	case "fill":
		v, err := nums(3)
		if err != nil {
			return err
		}
		data := make([]byte, v[1])
		for i := range data {
			data[i] = byte(v[2])
		}
		if err := t.Write(ctx, v[0], data); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok", len(data), "bytes")
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
