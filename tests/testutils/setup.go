package testutils

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"

	"github.com/go-rconn/rconn"
	"github.com/go-rconn/rconn/netreactor"
	"github.com/go-rconn/rconn/resp"
)

// ToxiproxyConfig holds toxiproxy setup configuration.
type ToxiproxyConfig struct {
	APIAddr string
	Proxies []ProxyConfig
}

// ProxyConfig defines a single proxy.
type ProxyConfig struct {
	Name     string
	Listen   string
	Upstream string
}

// DefaultToxiproxyConfig returns a single proxy in front of one Redis
// node, enough to drive disconnect/reconnect scenarios.
// Use REDIS_HOST to point at a non-default upstream (default: "redis1",
// a docker network name).
func DefaultToxiproxyConfig() ToxiproxyConfig {
	redisHost := "redis1"
	if host := os.Getenv("REDIS_HOST"); host != "" {
		if resolvedIP := resolveHostToIP(host); resolvedIP != "" {
			log.Printf("[Setup] Resolved %s to %s for toxiproxy upstream", host, resolvedIP)
			redisHost = resolvedIP
		} else {
			log.Printf("[Setup] Could not resolve %s, using as-is", host)
			redisHost = host
		}
	}

	return ToxiproxyConfig{
		APIAddr: "http://localhost:8474",
		Proxies: []ProxyConfig{
			{Name: "redis1", Listen: "0.0.0.0:21211", Upstream: fmt.Sprintf("%s:6379", redisHost)},
		},
	}
}

// resolveHostToIP attempts to resolve a hostname to an IPv4 address,
// falling back to the first address found if none is IPv4. Returns the
// input unchanged if it is already an IP, and an empty string if
// resolution fails.
func resolveHostToIP(hostname string) string {
	if net.ParseIP(hostname) != nil {
		return hostname
	}

	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return ""
	}

	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return ip.String()
		}
	}

	return addrs[0]
}

// SetupToxiproxy creates and configures toxiproxy proxies.
func SetupToxiproxy(config ToxiproxyConfig) (*toxiproxy.Client, []*toxiproxy.Proxy, error) {
	client := toxiproxy.NewClient(config.APIAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("timeout waiting for toxiproxy to be ready")
		default:
			proxies, err := client.Proxies()
			if err == nil {
				for _, proxy := range proxies {
					_ = proxy.Delete()
				}
				goto ready
			}
			time.Sleep(500 * time.Millisecond)
		}
	}

ready:
	proxies := make([]*toxiproxy.Proxy, 0, len(config.Proxies))
	for _, pConfig := range config.Proxies {
		proxy, err := client.CreateProxy(pConfig.Name, pConfig.Listen, pConfig.Upstream)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create proxy %s: %w", pConfig.Name, err)
		}
		proxies = append(proxies, proxy)
		fmt.Printf("[Setup] Created proxy: %s (%s -> %s)\n", pConfig.Name, pConfig.Listen, pConfig.Upstream)
	}

	for _, proxy := range proxies {
		if err := proxy.Enable(); err != nil {
			return nil, nil, fmt.Errorf("failed to enable proxy %s: %w", proxy.Name, err)
		}
	}

	return client, proxies, nil
}

// CleanupToxiproxy removes all toxics and resets proxies.
func CleanupToxiproxy(proxies []*toxiproxy.Proxy) error {
	for _, proxy := range proxies {
		toxics, err := proxy.Toxics()
		if err != nil {
			continue
		}
		for _, toxic := range toxics {
			_ = proxy.RemoveToxic(toxic.Name)
		}
		_ = proxy.Enable()
	}
	return nil
}

// WaitForHealthy waits until addr accepts a connection and answers a
// PING, dialing a throwaway handler for the probe.
func WaitForHealthy(ctx context.Context, addr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if err := probePing(ctx, addr); err == nil {
			fmt.Println("[Setup] Server is healthy")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for %s to become healthy", addr)
}

func probePing(ctx context.Context, addr string) error {
	h := rconn.NewHandler(rconn.Options{}, resp.New())
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	c, err := netreactor.Dial(dialCtx, "tcp", addr, h)
	if err != nil {
		return err
	}
	defer func() { <-c.Close() }()

	out := rconn.NewBufferedOutput()
	cmd := rconn.NewRedisCommand("PING", out)
	if _, err := h.Write(cmd); err != nil {
		return err
	}

	select {
	case <-cmd.Done():
		return cmd.Err()
	case <-dialCtx.Done():
		return dialCtx.Err()
	}
}
