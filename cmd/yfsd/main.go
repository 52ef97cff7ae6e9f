// Command yfsd boots a yfs server against a formatted disk image and
// serves client connections on a unix socket (or -addr, for tests over
// tcp).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"

	"golang.org/x/net/trace"

	"github.com/yfsfs/yfsd/internal/disk"
	"github.com/yfsfs/yfsd/internal/transport"
	"github.com/yfsfs/yfsd/internal/yfs"
)

func main() {
	imagePath := flag.String("image", "", "path to a formatted disk image")
	network := flag.String("network", "unix", "listener network: unix or tcp")
	addr := flag.String("addr", "/tmp/yfs.sock", "listener address")
	debugAddr := flag.String("debug-addr", "", "if set, serve /debug/requests and /debug/events here")
	execCmd := flag.String("exec", "", "if set, exec this command once the listener is ready, with YFS_ADDR in its environment")
	blockCacheSize := flag.Int("block-cache-size", 0, "block cache capacity in sectors (0 = default)")
	inodeCacheSize := flag.Int("inode-cache-size", 0, "inode cache capacity in entries (0 = default)")
	sectorSize := flag.Int("sector-size", 512, "sector size in bytes; must match the value cmd/yfsfmt formatted the image with")
	flag.Parse()

	if *imagePath == "" {
		log.Fatal("yfsd: -image is required")
	}

	d, err := disk.Open(*imagePath, *sectorSize)
	if err != nil {
		log.Fatalf("yfsd: %v", err)
	}

	s, err := yfs.Boot(d, yfs.ServerConfig{BlockCacheSize: *blockCacheSize, InodeCacheSize: *inodeCacheSize})
	if err != nil {
		log.Fatalf("yfsd: %v", err)
	}

	if *debugAddr != "" {
		go func() {
			log.Printf("yfsd: debug endpoints on http://%s/debug/requests", *debugAddr)
			log.Println(http.ListenAndServe(*debugAddr, nil))
		}()
	}

	l, err := transport.Listen(*network, *addr)
	if err != nil {
		log.Fatalf("yfsd: %v", err)
	}
	log.Printf("yfsd: listening on %s %s", *network, l.Addr())

	go func() {
		if err := l.Serve(); err != nil {
			log.Printf("yfsd: listener stopped: %v", err)
		}
	}()

	if *execCmd != "" {
		cmd := exec.Command(*execCmd)
		cmd.Env = append(os.Environ(), "YFS_NETWORK="+*network, "YFS_ADDR="+*addr)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			log.Fatalf("yfsd: exec %s: %v", *execCmd, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()

	tr := trace.New("yfs.server", "boot")
	tr.LazyPrintf("image=%s network=%s addr=%s", *imagePath, *network, *addr)
	tr.Finish()

	if err := s.Serve(ctx, l); err != nil && err != context.Canceled {
		log.Printf("yfsd: serve: %v", err)
	}

	if err := s.Shutdown(); err != nil {
		log.Fatalf("yfsd: shutdown: %v", err)
	}
}
