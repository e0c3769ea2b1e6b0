package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"attendancepro/internal/attendance"
	"attendancepro/internal/config"
	"attendancepro/internal/db"
	attendancegrpc "attendancepro/internal/grpc"
	internalhttp "attendancepro/internal/http"
	"attendancepro/internal/jobs"
	"attendancepro/internal/kiosk"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("env file ignored: %v", err)
	}
	cfg := config.Load()
	attendanceCfg, err := cfg.Attendance()
	if err != nil {
		log.Fatalf("attendance config invalid: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("db migration failed: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	clock := attendance.SystemClock{}
	validator, err := attendance.NewValidator(attendanceCfg, store, clock)
	if err != nil {
		log.Fatalf("validator init failed: %v", err)
	}
	issuer := kiosk.NewIssuer(redisClient, clock, cfg.LocationName, cfg.QRRegeneration, cfg.QRValidity)

	server := internalhttp.NewServer(cfg, validator, store, issuer)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	unaryAuth, err := attendancegrpc.NewServiceAuthUnaryInterceptor(cfg.ServiceAuthToken)
	if err != nil {
		log.Fatalf("grpc service auth init failed: %v", err)
	}
	streamAuth, err := attendancegrpc.NewServiceAuthStreamInterceptor(cfg.ServiceAuthToken)
	if err != nil {
		log.Fatalf("grpc service auth init failed: %v", err)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(unaryAuth), grpc.StreamInterceptor(streamAuth))
	health := attendancegrpc.NewHealth()
	health.Register(grpcServer)

	probes := map[string]jobs.Pinger{"postgres": store}
	if redisClient != nil {
		probes["redis"] = issuer
	}
	jobs.StartHealthProbeJob(ctx, cfg, health, probes)

	log.Printf("geofence center=(%f,%f) radius=%.0fm qr_validity=%s timezone=%s",
		attendanceCfg.Geofence.Latitude, attendanceCfg.Geofence.Longitude, attendanceCfg.Geofence.RadiusMeters,
		attendanceCfg.QRValidity, attendanceCfg.Location)

	go func() {
		log.Printf("attendance http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen error: %v", err)
		}
		log.Printf("attendance grpc listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("grpc server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
}
