// Package main is a one-shot command that declares the delivery
// pipeline's broker topology, retrying the initial connection until the
// broker is reachable.
package main

import (
	"context"
	"log"
	"time"

	"github.com/notifybridge/pipeline/internal/broker"
	"github.com/notifybridge/pipeline/internal/config"
)

func main() {
	cfg := config.Load()

	var topo *broker.Topology
	var err error

	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		topo, err = broker.Connect(cfg.BrokerURL)
		if err == nil {
			break
		}
		if i == maxRetries-1 {
			log.Fatalf("failed to connect to broker after %d retries: %v", maxRetries, err)
		}
		log.Printf("waiting for broker... (%d/%d): %v", i+1, maxRetries, err)
		time.Sleep(time.Second)
	}
	defer func() {
		if err := topo.Close(); err != nil {
			log.Printf("error closing topology connection: %v", err)
		}
	}()

	if err := topo.Init(context.Background()); err != nil {
		log.Fatalf("topology init failed: %v", err)
	}
	log.Println("broker topology ready")
}
