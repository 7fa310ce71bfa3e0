package main

import (
	"context"
	"flag"
	"log"
	"time"

	"docassist-be/internal/config"
	"docassist-be/internal/model"
	"docassist-be/pkg/database"
	"docassist-be/pkg/llm/factory"
	vsFactory "docassist-be/pkg/vectorstore/factory"

	"gorm.io/gorm"
)

func main() {
	dms := flag.Bool("dms", false, "also create the document management tables (local development only)")
	flag.Parse()

	// 1. Load Configuration
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 2. Vector width comes from the configured embedding model
	provider, err := factory.NewLLMProvider(ctx, cfg.Ai)
	if err != nil {
		log.Fatalf("Error: Failed to init AI provider: %v", err)
	}
	dims := provider.EmbeddingDimensions()

	// 3. Vector index schema
	var vectorDB *gorm.DB
	if cfg.VectorStore.Provider == config.VectorStorePgVector {
		vectorDB, err = database.NewGormDBFromDSN(cfg.Database.VectorConnection)
		if err != nil {
			log.Fatalf("Error: Failed to connect to vector database: %v", err)
		}
		defer database.Close(vectorDB)
	}

	log.Printf("Step 1: Preparing %s index for %d-dimensional embeddings (%s)...", cfg.VectorStore.Provider, dims, provider.Name())
	store, closeStore, err := vsFactory.NewVectorStore(ctx, cfg.VectorStore, vectorDB, dims)
	if err != nil {
		log.Fatalf("Error: Failed to prepare vector store: %v", err)
	}
	defer closeStore()
	log.Printf("Vector store %s ready", store.Name())

	if !*dms {
		log.Println("Migration complete.")
		return
	}

	// 4. Development copy of the document management schema
	log.Println("Step 2: Creating document management tables...")
	dmsDB, err := database.NewGormDBFromDSN(cfg.Database.DMSConnection)
	if err != nil {
		log.Fatalf("Error: Failed to connect to document database: %v", err)
	}
	defer database.Close(dmsDB)

	models := []interface{}{
		&model.User{},
		&model.Project{},
		&model.ProjectUser{},
		&model.Document{},
	}
	if err := dmsDB.WithContext(ctx).AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Migration complete.")
}
