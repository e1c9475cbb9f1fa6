package utilities

import (
	"fmt"

	capi "github.com/hashicorp/consul/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// RegisterHealthServer registers the gRPC health check service.
func RegisterHealthServer(grpcServer *grpc.Server) {
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
}

// RegisterConsulService registers this instance with the local consul agent,
// using the gRPC health endpoint as the liveness check.
func RegisterConsulService(client *capi.Client, serviceID, serviceName, host string, grpcPort int) error {
	registration := &capi.AgentServiceRegistration{
		ID:      serviceID,
		Name:    serviceName,
		Address: host,
		Port:    grpcPort,
		Check: &capi.AgentServiceCheck{
			GRPC:                           fmt.Sprintf("%s:%d", host, grpcPort),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	return client.Agent().ServiceRegister(registration)
}

// DeregisterConsulService removes this instance from the consul agent.
func DeregisterConsulService(client *capi.Client, serviceID string) error {
	return client.Agent().ServiceDeregister(serviceID)
}
