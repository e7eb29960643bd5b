package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kdimtricp/repcam/internal/api"
	"github.com/kdimtricp/repcam/internal/benchmark"
	"github.com/kdimtricp/repcam/internal/broker"
	"github.com/kdimtricp/repcam/internal/config"
	"github.com/kdimtricp/repcam/internal/database"
	"github.com/kdimtricp/repcam/internal/recorder"
	"github.com/kdimtricp/repcam/internal/session"
	"github.com/kdimtricp/repcam/internal/storage"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func main() {
	port := getEnv("PORT", "8080")
	resultsDir := getEnv("RESULTS_DIR", "./results")

	// Database configuration
	dbType := getEnv("DB_TYPE", "sqlite")
	dbConfig := database.Config{Type: dbType}
	if dbType == "postgres" {
		dbConfig.Host = getEnv("DB_HOST", "localhost")
		dbConfig.Port = getEnvInt("DB_PORT", 5432)
		dbConfig.User = getEnv("DB_USER", "repcam")
		dbConfig.Password = getEnv("DB_PASSWORD", "repcam_dev")
		dbConfig.Name = getEnv("DB_NAME", "repcam")
	} else {
		dbConfig.SQLitePath = getEnv("DB_PATH", "./repcam.db")
	}

	tuning := config.EmptyTuningConfig()
	if path := os.Getenv("TUNING_CONFIG"); path != "" {
		var err error
		tuning, err = config.LoadTuningConfig(path)
		if err != nil {
			log.Fatal("Failed to load tuning config:", err)
		}
		log.Printf("Loaded tuning config from %s", path)
	}
	configs := tuning.ExerciseConfigs()
	configs.Situp.DurationSeconds = getEnvInt("SITUP_DURATION", configs.Situp.DurationSeconds)

	resultStorage, err := storage.NewLocalStorage(resultsDir)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	log.Printf("Running database migrations")
	if err := db.MigrateUp(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	sinks := []recorder.Sink{
		recorder.NewDatabaseSink(db),
		storage.NewResultArchive(resultStorage),
	}

	if brokerHost := os.Getenv("MQTT_BROKER"); brokerHost != "" {
		publisher, err := broker.Connect(broker.Config{
			Broker:      brokerHost,
			Port:        getEnvInt("MQTT_PORT", 1883),
			TopicPrefix: getEnv("MQTT_TOPIC", broker.DefaultTopicPrefix),
			Username:    os.Getenv("MQTT_USERNAME"),
			Password:    os.Getenv("MQTT_PASSWORD"),
			UseTLS:      os.Getenv("MQTT_TLS") == "true",
			QoS:         1,
		})
		if err != nil {
			log.Printf("Warning: MQTT disabled: %v", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	} else {
		log.Printf("MQTT not configured. Set MQTT_BROKER to publish records")
	}

	rec := recorder.New(recorder.Config{
		QueueSize:   tuning.GetRecorderQueueSize(),
		SinkTimeout: tuning.GetRecorderSinkTimeout(),
	}, sinks...)

	var athletes *benchmark.Table
	if path := getEnv("ATHLETE_CSV", "./datasets/AthleteData.csv"); path != "" {
		athletes, err = benchmark.LoadFile(path)
		if err != nil {
			log.Printf("Warning: benchmarks disabled: %v", err)
		}
	}

	manager := session.NewManager(session.ManagerConfig{
		Configs:   configs,
		Publisher: rec,
	})

	app := &api.App{
		Sessions:     manager,
		Records:      database.NewRecordRepository(db),
		Measurements: database.NewMeasurementRepository(db),
		Storage:      resultStorage,
		Benchmarks:   athletes,
		MaxFrameSize: int64(getEnvInt("MAX_FRAME_SIZE", 1<<20)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rec.Start(ctx)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Server starting on port %s", port)
	log.Printf("Results directory: %s", resultsDir)
	log.Printf("Database type: %s", dbType)
	if dbType == "postgres" {
		log.Printf("Database connection: %s@%s:%d/%s", dbConfig.User, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	} else {
		log.Printf("Database path: %s", dbConfig.SQLitePath)
	}
	log.Printf("Sit-up duration: %ds", configs.Situp.DurationSeconds)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	manager.Shutdown()
	if err := rec.Close(shutdownCtx); err != nil {
		log.Printf("Recorder did not drain: %v", err)
	}
}
