package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	fastwire "github.com/reoring/fastwire"
	"github.com/reoring/fastwire/dictionary"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "check":
		checkCmd(os.Args[2:])
	case "decode":
		decodeCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "fastwire CLI\n\nUsage:\n  fastwire check <template-file>\n  fastwire decode -t <template-file> -x <hex> [-n <count>]\n\nNotes:\n  - Template files may be JSON, YAML or TOML.\n  - decode treats each -x argument as one pre-delimited message buffer;\n    repeated messages on one stream are separated by commas.")
}

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	path := fs.Arg(0)
	reg := fastwire.NewRegistry()
	if err := dictionary.Load(reg, path); err != nil {
		reportIssues(err)
		log.Fatal().Str("path", path).Msg("template document rejected")
	}
	ids := reg.TemplateIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t, _ := reg.Template(id)
		log.Info().Uint32("tid", id).Str("name", t.Name).Int("fields", len(t.Fields)).Msg("template ok")
	}
}

func decodeCmd(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	var tmplPath string
	var hexBuf string
	fs.StringVar(&tmplPath, "t", "", "template document (json/yaml/toml)")
	fs.StringVar(&hexBuf, "x", "", "hex message buffer(s), comma separated in stream order")
	_ = fs.Parse(args)
	if tmplPath == "" || hexBuf == "" {
		fs.Usage()
		os.Exit(2)
	}

	reg := fastwire.NewRegistry()
	if err := dictionary.Load(reg, tmplPath); err != nil {
		reportIssues(err)
		log.Fatal().Str("path", tmplPath).Msg("template document rejected")
	}

	ctx := reg.NewContext()
	for i, part := range strings.Split(hexBuf, ",") {
		buf, err := hex.DecodeString(strings.TrimSpace(part))
		if err != nil {
			log.Fatal().Err(err).Int("message", i).Msg("invalid hex")
		}
		msg, err := fastwire.Decode(ctx, buf)
		if err != nil {
			reportIssues(err)
			log.Fatal().Int("message", i).Msg("decode failed")
		}
		t, _ := reg.Template(msg.TID())
		fmt.Printf("message %d: template %d (%s)\n", i, msg.TID(), t.Name)
		printMessage(msg, t.Fields, "  ")
	}
}

func printMessage(m *fastwire.Message, fields []fastwire.Field, indent string) {
	for _, f := range fields {
		v, ok := m.Value(f.ID)
		if !ok {
			continue
		}
		switch f.Type {
		case fastwire.TypeGroup:
			fmt.Printf("%s%s (%d):\n", indent, f.Name, f.ID)
			printMessage(v.(*fastwire.Message), f.Inner, indent+"  ")
		case fastwire.TypeSequence:
			entries := v.([]*fastwire.Message)
			fmt.Printf("%s%s (%d): %d entries\n", indent, f.Name, f.ID, len(entries))
			for _, e := range entries {
				printMessage(e, f.Inner, indent+"  ")
			}
		default:
			fmt.Printf("%s%s (%d) = %v\n", indent, f.Name, f.ID, v)
		}
	}
}

func reportIssues(err error) {
	iss, ok := fastwire.AsIssues(err)
	if !ok {
		log.Error().Err(err).Msg("error")
		return
	}
	for _, it := range iss {
		log.Error().Str("path", it.Path).Str("code", it.Code).Int64("offset", it.Offset).Msg(it.Message)
	}
}
