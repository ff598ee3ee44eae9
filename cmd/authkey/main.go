// Package main provides a one-shot utility for admin credential material.
//
// It emits the asymmetric keypair used by admin API checks, or a signed
// admin bearer token.
package main

import (
	"flag"
	"os"

	"github.com/instaagents/discovery/internal/platform/config"
	"github.com/instaagents/discovery/internal/tools/authkey"
)

func main() {
	cfg, err := authkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := authkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate admin credential: %v", err)
	}
}
