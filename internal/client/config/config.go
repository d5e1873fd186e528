// Package config holds the CLI client configuration.
package config

import (
	"flag"
	"os"
)

type Config struct {
	ServerAddr string
}

func NewConfig() *Config {
	return &Config{ServerAddr: "http://localhost:8082"}
}

// LoadConfig resolves the server address from the -a flag, falling back to
// the SERVER_ADDR environment variable and then the default.
func LoadConfig() *Config {
	c := NewConfig()

	if addr, ok := os.LookupEnv("SERVER_ADDR"); ok {
		c.ServerAddr = addr
	}

	flag.StringVar(&c.ServerAddr, "a", c.ServerAddr, "server base URL")
	flag.Parse()

	return c
}
