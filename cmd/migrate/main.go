package main

import (
	"flag"
	"log"

	"github.com/taskq/scheduler/internal/bootstrap"
	"github.com/taskq/scheduler/internal/infra/persistence/executionrepo"
	"github.com/taskq/scheduler/internal/infra/persistence/taskrepo"
	"github.com/taskq/scheduler/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := bootstrap.NewDatabase(*cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// 建表/补列
	if err := db.AutoMigrate(
		&taskrepo.TaskPo{},
		&executionrepo.ExecutionRecordPo{},
	); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	log.Println("Migration completed successfully!")
}
