package config

import (
	"fmt"
	"strings"

	"go-topic-relay/internal/infrastructure/logger"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func (v Validation) OK() bool { return len(v.Errors) == 0 }

func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" || seen[x] {
			continue
		}
		seen[x] = true
		ys = append(ys, x)
	}
	return ys
}

// NormalizeAndValidate returns a normalized copy of cfg together with the
// problems found in it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.WebSocket.AllowedOrigins = trimList(out.WebSocket.AllowedOrigins)
	out.Changes.Kafka.Brokers = trimList(out.Changes.Kafka.Brokers)
	out.Content.Driver = strings.ToLower(strings.TrimSpace(out.Content.Driver))

	if out.Server.Addr == "" {
		res.addErr("server.addr must not be empty")
	}
	if out.Server.ShutdownTimeout <= 0 {
		res.addErr("server.shutdown_timeout must be positive")
	}
	if _, err := logger.ParseLevel(out.Log.Level); err != nil {
		res.addErr("log.level: %v", err)
	}

	if out.Relay.SendTimeout <= 0 {
		res.addErr("relay.send_timeout must be positive")
	}
	if out.Relay.DeliveryTimeout <= 0 {
		res.addErr("relay.delivery_timeout must be positive")
	}
	if out.Relay.JanitorInterval <= 0 {
		res.addErr("relay.janitor_interval must be positive")
	}

	if out.WebSocket.PongWait <= 0 || out.WebSocket.WriteWait <= 0 {
		res.addErr("websocket.pong_wait and websocket.write_wait must be positive")
	}
	if len(out.WebSocket.AllowedOrigins) == 0 {
		res.addWarn("websocket.allowed_origins is empty; browser clients will be rejected")
	}

	if out.SSE.KeepAlive <= 0 {
		res.addErr("sse.keep_alive must be positive")
	}

	switch out.Content.Driver {
	case "static":
	case "sqlite", "postgres":
		if out.Content.DSN == "" {
			res.addErr("content.dsn is required for driver %q", out.Content.Driver)
		}
	default:
		res.addErr("content.driver %q is not one of static, sqlite, postgres", out.Content.Driver)
	}

	for i, m := range out.Changes.Schedule {
		if strings.TrimSpace(m.Topic) == "" {
			res.addErr("changes.schedule[%d].topic must not be empty", i)
		}
		if m.After < 0 || m.Every < 0 {
			res.addErr("changes.schedule[%d] durations must not be negative", i)
		}
	}

	if out.Changes.Kafka.Enabled() && out.Changes.Kafka.Topic == "" {
		res.addErr("changes.kafka.topic is required when brokers are set")
	}

	if out.RateLimit.RPS <= 0 || out.RateLimit.Burst <= 0 {
		res.addWarn("ratelimit disabled (rps and burst must both be positive)")
	}

	return out, res
}
