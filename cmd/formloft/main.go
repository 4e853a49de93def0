package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/formloft/formloft/app/repository"
	"github.com/formloft/formloft/internal/pkg/cache"
	"github.com/formloft/formloft/internal/pkg/database"
	"github.com/formloft/formloft/internal/pkg/env"
	"github.com/formloft/formloft/internal/pkg/router"
	"github.com/formloft/formloft/internal/pkg/tenants"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	reg, err := tenants.Load()
	if err != nil {
		log.Fatalf("failed to load tenant registry: %v", err)
	}

	database.SetupDatabase(reg)
	repository.InitializeFactory(database.GetDB(), reg)
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		// primary document plus attachments in one multipart request
		BodyLimit: 104857600, // 100 MiB
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, reg)

	return app
}
