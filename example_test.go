package katcp_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pior/katcp"
)

func ExampleClient_Request() {
	ctx := context.Background()

	client, err := katcp.Dial(ctx, katcp.Config{Host: "roach020203", Timeout: 500 * time.Millisecond})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	msg, err := client.Request(ctx, "sensor_value", "adc.temperature")
	if err != nil {
		log.Fatal(err)
	}
	if !msg.OK() {
		log.Fatalf("sensor-value: %s %s", msg.Status(), msg.Payload())
	}
	for _, inform := range msg.Informs() {
		fmt.Println(inform.Args())
	}

	// Informs the device sent on its own, e.g. #sensor-status or #log
	for _, inform := range client.Informs(true) {
		fmt.Println(inform)
	}
}

func ExampleClient_Help() {
	ctx := context.Background()

	client, err := katcp.NewClient(katcp.Config{Host: "roach020203"})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	msg, err := client.Help(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(msg.Table())
}

func ExampleLoadConfig() {
	cfg, err := katcp.LoadConfig("/etc/katcp/roach.yaml")
	if err != nil {
		log.Fatal(err)
	}
	cfg.NewCircuitBreaker = katcp.NewCircuitBreakerConfig(1, time.Minute, 30*time.Second)

	client, err := katcp.NewClient(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		log.Printf("device down: %v (breaker %s)", err, client.CircuitBreakerState())
	}
}

func ExampleNewStatsCollector() {
	client, err := katcp.NewClient(katcp.Config{Host: "roach020203"})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	prometheus.MustRegister(katcp.NewStatsCollector(client))

	stats := client.Stats()
	fmt.Printf("requests=%d retries=%d failures=%d\n", stats.Requests, stats.Retries, stats.Failures)
}

func ExampleCluster_Broadcast() {
	cluster, err := katcp.NewCluster(
		[]string{"roach1", "roach2", "roach3:7148"},
		katcp.Config{Timeout: time.Second},
		nil,
	)
	if err != nil {
		log.Fatal(err)
	}
	defer cluster.Close()

	msgs, err := cluster.Broadcast(context.Background(), "watchdog")
	if err != nil {
		log.Printf("some boards failed: %v", err)
	}
	for addr, msg := range msgs {
		fmt.Println(addr, msg.Status())
	}
}

func ExamplePool() {
	pool, err := katcp.NewPool(katcp.PoolConfig{
		Client:              katcp.Config{Host: "roach020203"},
		MaxSize:             4,
		HealthCheckInterval: 30 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	_, err = pool.Call(context.Background(), "capture_start", "stream0")
	if err != nil {
		log.Fatal(err)
	}
}
