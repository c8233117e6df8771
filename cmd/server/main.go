package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/LoganEvans/ScalingThreadPool/internal/router"
	"github.com/LoganEvans/ScalingThreadPool/internal/server"
)

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	router.Init(map[string]int{
		"thread_limit":         getenvInt("THREAD_LIMIT", 8),
		"throttle_interval_ms": getenvInt("THROTTLE_INTERVAL_MS", 1000),

		"cpuburn.thread_weight": getenvInt("CPUBURN_THREAD_WEIGHT", 1),
		"cpuburn.worker_limit":  getenvInt("CPUBURN_WORKER_LIMIT", 8),
		"cpuburn.ring_size":     getenvInt("CPUBURN_RING_SIZE", 256),

		"iowait.thread_weight": getenvInt("IOWAIT_THREAD_WEIGHT", 1),
		"iowait.worker_limit":  getenvInt("IOWAIT_WORKER_LIMIT", 64),
		"iowait.ring_size":     getenvInt("IOWAIT_RING_SIZE", 256),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		router.Close()
		os.Exit(0)
	}()

	log.Println("HTTP/1.0 server starting on :8080")
	if err := server.ListenAndServe(":8080"); err != nil {
		log.Fatalf("listen failed: %v", err)
	}
}
