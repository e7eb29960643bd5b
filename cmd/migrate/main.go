package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/kdimtricp/repcam/internal/database"
)

func main() {
	var (
		dbType   = flag.String("db", "sqlite", "Database type (postgres or sqlite)")
		path     = flag.String("path", "./repcam.db", "SQLite database path")
		host     = flag.String("host", "localhost", "Database host")
		port     = flag.Int("port", 5432, "Database port")
		user     = flag.String("user", "repcam", "Database user")
		password = flag.String("password", "repcam_dev", "Database password")
		dbName   = flag.String("name", "repcam", "Database name")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] up|down|version|force <version>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	config := database.Config{
		Type:       *dbType,
		Host:       *host,
		Port:       *port,
		User:       *user,
		Password:   *password,
		Name:       *dbName,
		SQLitePath: *path,
	}

	// Override with environment variables if set
	if env := os.Getenv("DB_TYPE"); env != "" {
		config.Type = env
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		config.SQLitePath = env
	}
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		p, err := strconv.Atoi(env)
		if err != nil {
			log.Fatal("Invalid DB_PORT:", err)
		}
		config.Port = p
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Name = env
	}

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	db, err := database.NewDB(config)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.MigrateUp(); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		fmt.Println("Migrations completed successfully!")
	case "down":
		if err := db.MigrateDown(); err != nil {
			log.Fatal("Failed to roll back migration:", err)
		}
		fmt.Println("Rolled back one migration")
	case "version":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			log.Fatal("Failed to read migration version:", err)
		}
		fmt.Printf("Version: %d (dirty: %v)\n", version, dirty)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires a version")
		}
		v, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatal("Invalid version:", err)
		}
		if err := db.MigrateForce(v); err != nil {
			log.Fatal("Failed to force version:", err)
		}
		fmt.Printf("Forced version %d\n", v)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
