package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/golang-io/mqttpacket"
	"github.com/golang-io/mqttpacket/packet"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const usage = `usage: mqttpacket [-config file] <command> [arguments]

commands:
  encode -kind publish '{"topic":"a/b","payload":"hello","qos":1,"packetId":1}'
  decode [-hex] [file]    decode a stream of packets, "-" or no file reads stdin
  serve                   serve /encode, /decode, /ws and /metrics over http
`

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	c := flag.String("config", "", "Path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if *c != "" {
		if err := mqttpacket.LoadConfig(*c); err != nil {
			log.Fatal(err)
		}
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "encode":
		err = encode(args)
	case "decode":
		err = decode(args)
	case "serve":
		err = serve()
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func encode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	name := fs.String("kind", "publish", "packet type")
	_ = fs.Parse(args)

	kind, err := mqttpacket.ParseKind(*name)
	if err != nil {
		return err
	}
	req := &mqttpacket.EncodeRequest{}
	if fs.NArg() != 0 {
		if err := json.Unmarshal([]byte(fs.Arg(0)), req); err != nil {
			return fmt.Errorf("parse request: %w", err)
		}
	}
	pkt, err := req.Packet(kind)
	if err != nil {
		return err
	}
	b, err := packet.NewEncoder(mqttpacket.CONFIG.BufferEstimate).Encode(pkt)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(b))
	return nil
}

func decode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	isHex := fs.Bool("hex", false, "input is hex text, whitespace is ignored")
	_ = fs.Parse(args)

	var r io.Reader = os.Stdin
	if name := fs.Arg(0); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	r = bufio.NewReader(r)
	if *isHex {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		raw, err := hex.DecodeString(strings.Join(strings.Fields(string(b)), ""))
		if err != nil {
			return err
		}
		r = strings.NewReader(string(raw))
	}

	capture, err := mqttpacket.NewCapture(mqttpacket.CONFIG.Filters...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	if err := capture.Walk(context.Background(), r, func(rec *mqttpacket.Record) error {
		return enc.Encode(rec)
	}); err != nil {
		return err
	}
	if pending := capture.Pending(); len(pending) != 0 {
		log.WithField("pending", pending).Warn("acknowledgement flow not completed")
	}
	return nil
}

func serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return mqttpacket.Httpd(ctx)
	})
	group.Go(func() error {
		sign := make(chan os.Signal, 1)
		signal.Notify(sign, os.Interrupt, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sign:
			cancel()
			return fmt.Errorf("got sign: %s", sig)
		}
	})
	return group.Wait()
}
