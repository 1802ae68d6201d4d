// Package util starts the disposable services used by integration tests:
// a Mosquitto broker for the run publisher, a Prometheus Pushgateway for
// the metrics sink and PostgreSQL for the run history. Every helper returns
// the service endpoint and a cleanup function that terminates the container.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// BrokerReadyTimeout bounds the wait for the broker to accept clients.
	BrokerReadyTimeout = 5 * time.Second
	// MetricTimeout is a sensible bound for WaitForMetric.
	MetricTimeout = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
`

// start runs req and returns "<scheme>://host:port" for the given port.
func start(ctx context.Context, req tc.ContainerRequest, scheme, port string) (string, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = cont.Terminate(context.Background()) }
	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	mapped, err := cont.MappedPort(ctx, port)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return fmt.Sprintf("%s://%s:%s", scheme, host, mapped.Port()), cleanup, nil
}

// StartMosquitto launches an anonymous Mosquitto broker and returns its
// tcp:// URL once a client can connect.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	broker, cleanup, err := start(ctx, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConf),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}, "tcp", "1883")
	if err != nil {
		return "", nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, BrokerReadyTimeout)
	defer cancel()
	if err := waitForBroker(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

func waitForBroker(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("rotaplan-ready")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		if token.WaitTimeout(time.Second) && token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("broker %s not ready: %w", broker, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// StartPushgateway launches a Prometheus Pushgateway and returns its http://
// base URL.
func StartPushgateway(ctx context.Context) (string, func(), error) {
	return start(ctx, tc.ContainerRequest{
		Image:        "prom/pushgateway:v1.9.0",
		ExposedPorts: []string{"9091/tcp"},
		WaitingFor:   wait.ForHTTP("/-/ready").WithPort("9091/tcp"),
	}, "http", "9091")
}

// StartPostgres launches a PostgreSQL server and returns a DSN for the
// "rotaplan" database.
func StartPostgres(ctx context.Context) (string, func(), error) {
	base, cleanup, err := start(ctx, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "rotaplan",
			"POSTGRES_PASSWORD": "rotaplan",
			"POSTGRES_DB":       "rotaplan",
		},
		// The server restarts once after initdb.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(time.Minute),
	}, "postgres", "5432")
	if err != nil {
		return "", nil, err
	}
	host := strings.TrimPrefix(base, "postgres://")
	return fmt.Sprintf("postgres://rotaplan:rotaplan@%s/rotaplan?sslmode=disable", host), cleanup, nil
}

// WaitForMetric polls a Prometheus text endpoint until its body contains
// substr.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		if body, err := fetch(ctx, metricsURL); err == nil && strings.Contains(body, substr) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}
