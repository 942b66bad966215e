package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"geoqueue/backend/internal/audit"
	auditrepo "geoqueue/backend/internal/audit/repository"
	"geoqueue/backend/internal/clock"
	"geoqueue/backend/internal/config"
	"geoqueue/backend/internal/db"
	"geoqueue/backend/internal/device"
	"geoqueue/backend/internal/geofence"
	"geoqueue/backend/internal/identity"
	"geoqueue/backend/internal/policy/engine"
	policyrepo "geoqueue/backend/internal/policy/repository"
	"geoqueue/backend/internal/security"
	"geoqueue/backend/internal/server"
	"geoqueue/backend/internal/server/interceptors"
	siterepo "geoqueue/backend/internal/site/repository"
	"geoqueue/backend/internal/telemetry"
	telemetryotel "geoqueue/backend/internal/telemetry/otel"
	"geoqueue/backend/internal/telemetry/producer"
	ticketrepo "geoqueue/backend/internal/ticket/repository"
	"geoqueue/backend/internal/ticket/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("telemetry: kafka producer: %v", err)
	}
	// A nil *KafkaProducer must not become a non-nil interface.
	var requestProducer producer.Producer
	var emitter telemetry.EventEmitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		requestProducer = kafkaProducer
		emitter = telemetry.Fanout(emitter, kafkaProducer)
	}

	var tokens *security.TokenProvider
	if cfg.VerifierAuthEnabled() {
		pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			log.Fatalf("security: JWT_PUBLIC_KEY: %v", err)
		}
		tokens = security.NewTokenProvider(nil, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.StaffTTL())
	} else {
		log.Println("security: JWT_PUBLIC_KEY not set; verification and stats RPCs are unauthenticated")
	}

	claims, err := identity.NewClaimValidator(cfg.IdentityClaimPattern)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	sites := siterepo.NewSQLRepository(conn)
	ledger := ticketrepo.NewSQLLedger(conn)
	audits := auditrepo.NewSQLRepository(conn)
	auditLogger := audit.NewLogger(audits, interceptors.ClientIP)
	policies := engine.NewOPAEvaluator(policyrepo.NewSQLRepository(conn), engine.Deployment{
		LocationBypass:    cfg.LocationBypass,
		AccuracyCapMeters: cfg.AccuracyCapMeters,
		Env:               cfg.Env,
		Production:        cfg.IsProduction(),
	})
	clk := clock.Real()
	loc := cfg.Location()

	allocator := service.NewAllocator(sites, ledger, claims, device.NewResolver(), geofence.NewGate(cfg.AccuracyCapMeters),
		policies, clk, emitter, service.AllocatorConfig{
			ActiveSiteID:   cfg.ActiveSiteID,
			Location:       loc,
			LocationBypass: cfg.LocationBypass,
			MaxAttempts:    cfg.AllocationMaxAttempts,
		})
	verifier := service.NewVerifier(sites, ledger, clk, loc, auditLogger, emitter)
	stats := service.NewStats(sites, ledger, clk, loc)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	unobserved := server.UnobservedMethods()
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.TelemetryUnary(requestProducer, unobserved),
			interceptors.AuthUnary(tokens, server.PublicMethods()),
			interceptors.AuditUnary(auditLogger, unobserved),
		),
	)
	server.RegisterServices(s, server.Deps{
		Allocator:           allocator,
		Verifier:            verifier,
		Stats:               stats,
		AuditRepo:           audits,
		HealthPinger:        conn,
		HealthPolicyChecker: policies,
	})

	go func() {
		log.Printf("gRPC server listening on %s (store %s, site zone %s)", cfg.GRPCAddr, conn.Dialect, loc)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	s.GracefulStop()
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
	log.Println("gRPC server stopped")
}
