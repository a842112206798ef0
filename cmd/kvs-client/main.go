// Command kvs-client sends one-shot get/set/rm requests to a kvs-server
// over TCP.
package main

import (
	"log"
	"os"
	"time"

	"github.com/aether-labs/kvs/internal/cli"
	"github.com/aether-labs/kvs/internal/client"
	flag "github.com/spf13/pflag"
)

func main() {
	addr := flag.StringP("addr", "a", "127.0.0.1:4000", "server address")
	timeout := flag.Duration("timeout", 5*time.Second, "dial timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("kvs-client: usage: kvs-client <get|set|rm> ... [--addr host:port]")
	}

	c := client.New(*addr, *timeout)
	h := cli.NewHandler(cli.ClientStore{Client: c})

	os.Exit(h.RunOnce(args))
}
