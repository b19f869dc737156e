// Package grpc runs the gRPC side of the server. It only carries the
// standard grpc.health.v1 service, which reports SERVING once the record
// store has loaded its collection and NOT_SERVING while shutting down.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name clients may query besides "".
const ServiceName = "profilekeeper.Profiles"

// StoreChecker is satisfied by *records.Store.
type StoreChecker interface {
	Check(ctx context.Context) (int, error)
}

type GRPCServer struct {
	address string
	logger  logging.Logger
	store   StoreChecker
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, store StoreChecker) *GRPCServer {
	s := &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		store:   store,
		health:  health.NewServer(),
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestIDInterceptor, s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go s.checkReadiness(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// checkReadiness loads the collection once. Only a successful load flips the
// health status to SERVING.
func (s *GRPCServer) checkReadiness(ctx context.Context) {
	n, err := s.store.Check(ctx)
	if err != nil {
		s.logger.Error(ctx, "record store is not ready", "error", err.Error())
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "record store ready", "records", n)
}

func (s *GRPCServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
