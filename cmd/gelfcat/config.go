package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type config struct {
	// Address is host:port for udp/tcp, or an amqp:// URL.
	Address string `yaml:"address"`
	Proto   string `yaml:"proto"`

	Host     string `yaml:"host"`
	Facility string `yaml:"facility"`
	Level    int    `yaml:"level"`

	Compression string `yaml:"compression"`
	ChunkSize   int    `yaml:"chunk_size"`

	AMQPExchange   string `yaml:"amqp_exchange"`
	AMQPRoutingKey string `yaml:"amqp_routing_key"`
}

func defaultConfig() config {
	hostname, _ := os.Hostname()
	return config{
		Address:        "localhost:12201",
		Proto:          "udp",
		Host:           hostname,
		Level:          6, // info
		Compression:    "gzip",
		AMQPExchange:   "log-messages",
		AMQPRoutingKey: "#",
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
