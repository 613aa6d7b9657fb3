// Package config defines the CLI flags wsecho runs with, following the
// same altsrc-sourced flag convention tzrikka-timpani uses for its own
// subsystems: each flag except --pretty-log reads from an environment
// variable first, then falls back to a TOML key in the user's config
// file. --pretty-log is set on the command line only.
package config

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

const (
	// DefaultListenAddr is where wsecho listens when -listen is unset.
	DefaultListenAddr = "127.0.0.1:8089"

	// DefaultMaxMessageBytes caps a single reassembled message, per the
	// buffer growth policy's ceiling.
	DefaultMaxMessageBytes = 16 << 20
)

// Flags returns the CLI flags wsecho registers, sourced from
// WSECHO_*-prefixed environment variables or configFilePath's TOML keys.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "address to listen on for WebSocket upgrades",
			Value: DefaultListenAddr,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSECHO_LISTEN"),
				toml.TOML("server.listen", configFilePath),
			),
		},
		&cli.IntFlag{
			Name:  "max-message-bytes",
			Usage: "largest reassembled message this server will accept",
			Value: DefaultMaxMessageBytes,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSECHO_MAX_MESSAGE_BYTES"),
				toml.TOML("server.max_message_bytes", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "compression",
			Usage: "negotiate permessage-deflate when offered",
			Value: true,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSECHO_COMPRESSION"),
				toml.TOML("server.compression", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
	}
}
