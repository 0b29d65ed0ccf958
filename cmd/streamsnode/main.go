package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/w3f-grants-archive/validated-streams/api"
	"github.com/w3f-grants-archive/validated-streams/config"
	"github.com/w3f-grants-archive/validated-streams/crypto/keyvault"
	"github.com/w3f-grants-archive/validated-streams/node"
)

func main() {
	var configPath = flag.String("config", "", "Path to JSON config file")
	var dataDir = flag.String("datadir", "", "Data directory (overrides config)")
	var keystoreDir = flag.String("keystore", "", "Keystore directory (overrides config)")
	var listenAddr = flag.String("listen", "", "Gossip listen multiaddr (overrides config)")
	var peers = flag.String("peers", "", "Comma-separated peer multiaddrs (overrides config)")
	var apiPort = flag.Int("api-port", 0, "Status API port (overrides config)")
	var logLevel = flag.String("loglevel", "", "Log level: debug, info, warn or error")
	var genKey = flag.Bool("genkey", false, "Generate a validator key in the keystore and exit")
	var witness = flag.String("witness", "", "Submit a hex event id to a running node and exit")
	var target = flag.String("target", "localhost:5555", "Validation endpoint address for -witness")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flag overrides on top of the config file.
	if *dataDir != "" {
		cfg.Node.DataDir = *dataDir
	}
	if *keystoreDir != "" {
		cfg.Node.KeystoreDir = *keystoreDir
	}
	if *listenAddr != "" {
		cfg.Network.ListenAddr = *listenAddr
	}
	if *peers != "" {
		cfg.Network.Peers = strings.Split(*peers, ",")
	}
	if *apiPort > 0 {
		cfg.API.StatusPort = *apiPort
	}
	if *logLevel != "" {
		cfg.Node.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, err := logging.LevelFromString(cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.Node.LogLevel, err)
	}
	logging.SetAllLoggers(level)

	if *genKey {
		generateKey(cfg.Node.KeystoreDir)
		return
	}
	if *witness != "" {
		witnessEvent(*target, *witness)
		return
	}

	streamsNode := node.New(cfg)
	if err := streamsNode.Start(); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}
	if !streamsNode.IsRunning() {
		// Observer mode: nothing to serve, nothing to wait for.
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	statusTicker := time.NewTicker(30 * time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-c:
			if err := streamsNode.Stop(); err != nil {
				log.Printf("Error stopping node: %v", err)
			}
			return

		case <-statusTicker.C:
			printNodeStatus(streamsNode)
		}
	}
}

// generateKey provisions a fresh validator key and prints the public key
// the operator registers with the other validators.
func generateKey(dir string) {
	vault, err := keyvault.Generate(dir)
	if err != nil {
		log.Fatalf("Failed to generate validator key: %v", err)
	}
	fmt.Printf("generated validator key in %s\n", dir)
	fmt.Printf("public key: %s\n", vault.PublicKey())
}

// witnessEvent submits one event id to a running node's validation
// endpoint. The id is sent as raw bytes; the endpoint enforces the shape.
func witnessEvent(addr, idHex string) {
	raw, err := hex.DecodeString(strings.TrimPrefix(idHex, "0x"))
	if err != nil {
		log.Fatalf("Invalid event id hex: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := api.Dial(ctx, addr)
	if err != nil {
		log.Fatalf("Failed to reach node: %v", err)
	}
	defer client.Close()

	reply, err := client.ValidateEvent(ctx, raw)
	if err != nil {
		log.Fatalf("Witness request failed: %v", err)
	}
	fmt.Println(reply)
}

var statusOrder = []string{
	"peers", "chain_height", "pool_size",
	"messages_received", "messages_published",
	"publish_failures", "decode_failures",
	"peers_dialed", "failed_dials",
}

func printNodeStatus(n *node.Node) {
	snap := n.Snapshot()
	if snap == nil {
		return
	}
	fmt.Println("=== node status ===")
	for _, key := range statusOrder {
		if v, ok := snap[key]; ok {
			fmt.Printf("  %s: %d\n", key, v)
		}
	}
	fmt.Println("===================")
}
