package integration_test

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go/network"

	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
)

// startNATSContainer starts a NATS container with JetStream enabled and returns it along with its URL.
// This uses the newer TestContainers NATS module approach.
func startNATSContainer(ctx context.Context, networkName string, nwr *testcontainers.DockerNetwork) (testcontainers.Container, string, error) {
	// Start a NATS container with JetStream enabled
	natsContainer, err := tcnats.Run(ctx,
		"nats:2.11-alpine",
		tcnats.WithArgument("name", "test-nats-server"),
		tcnats.WithArgument("http_port", "8222"),
		tcnats.WithArgument("store_dir", "/data"),
		network.WithNetwork([]string{"nats", networkName}, nwr),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}

	// Get the connection string. Streams and consumers are created by the
	// application container on startup.
	natsURL, err := natsContainer.ConnectionString(ctx)
	if err != nil {
		return natsContainer, "", fmt.Errorf("failed to get NATS connection string: %w", err)
	}

	return natsContainer, natsURL, nil
}
