// gelfcat reads lines from stdin and ships each one as a GELF message
// to a Graylog-compatible collector.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/magenta-aps/go-gelf/gelf"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	})))

	var (
		configPath  = flag.String("config", "", "path to a YAML config file")
		addr        = flag.String("addr", "", "collector address (host:port, or amqp:// URL)")
		proto       = flag.String("proto", "", "transport: udp, tcp, or amqp")
		compression = flag.String("compression", "", "udp compression: gzip, zlib, or none")
		chunkSize   = flag.Int("chunk-size", 0, "maximum udp datagram size before chunking")
		level       = flag.Int("level", -1, "syslog level for sent messages (0-7)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	// flags win over the config file
	if *addr != "" {
		cfg.Address = *addr
	}
	if *proto != "" {
		cfg.Proto = *proto
	}
	if *compression != "" {
		cfg.Compression = *compression
	}
	if *chunkSize > 0 {
		cfg.ChunkSize = *chunkSize
	}
	if *level >= 0 {
		cfg.Level = *level
	}

	w, err := newWriter(cfg)
	if err != nil {
		slog.Error("failed to set up writer", "proto", cfg.Proto, "addr", cfg.Address, "err", err)
		os.Exit(1)
	}
	defer w.Close()

	slog.Info("shipping stdin", "proto", cfg.Proto, "addr", cfg.Address)

	if err := ship(w, cfg); err != nil {
		slog.Error("reading stdin", "err", err)
		os.Exit(1)
	}
}

// ship sends each stdin line as one message.  A failed send is logged
// and the line is skipped; the stream keeps going.
func ship(w gelf.Writer, cfg config) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		m := &gelf.Message{
			Version:  "1.1",
			Host:     cfg.Host,
			Short:    line,
			TimeUnix: float64(time.Now().UnixNano()) / float64(time.Second),
			Level:    int32(cfg.Level),
			Facility: cfg.Facility,
		}
		if err := w.WriteMessage(m); err != nil {
			slog.Error("send failed, dropping line", "err", err)
		}
	}
	return scanner.Err()
}

func newWriter(cfg config) (gelf.Writer, error) {
	switch cfg.Proto {
	case "udp":
		w, err := gelf.NewUDPWriter(cfg.Address)
		if err != nil {
			return nil, err
		}
		if w.CompressionType, err = gelf.ParseCompressType(cfg.Compression); err != nil {
			w.Close()
			return nil, err
		}
		if cfg.ChunkSize > 0 {
			w.ChunkSize = cfg.ChunkSize
		}
		return w, nil
	case "tcp":
		return gelf.NewTCPWriter(cfg.Address)
	case "amqp":
		return gelf.NewAMQPWriter(cfg.Address, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	}
	return nil, fmt.Errorf("unknown proto %q", cfg.Proto)
}
