package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/lex1olnk/mang2/internal/auth"
	"github.com/lex1olnk/mang2/internal/engine"
	"github.com/lex1olnk/mang2/internal/instrument"
	"github.com/lex1olnk/mang2/internal/metadata"
	"github.com/lex1olnk/mang2/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		log.Printf("Config loaded (port: %d, driver: %s, db: %s)", cfg.Server.Port, cfg.Database.Driver, cfg.Database.Name)

		reg, err := metadata.LoadFiles(cfg.Schema.Document, cfg.Schema.Policy)
		if err != nil {
			return fmt.Errorf("load models: %w", err)
		}

		db, err := store.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		log.Println("Database connected")

		eng := engine.New(db, reg)
		if err := auth.SeedAdmin(ctx, eng, cfg.Auth.UserModel, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return err
		}
		app := newApp(eng)

		go func() {
			<-ctx.Done()
			log.Println("Shutting down")
			if err := app.Shutdown(); err != nil {
				log.Printf("WARN: shutdown: %v", err)
			}
		}()

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		return app.Listen(addr)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

func newApp(eng *engine.Engine) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	if cfg.Instrumentation.Enabled {
		buffer := instrument.NewEventBuffer(instrument.LogSink{}, cfg.Instrumentation.BufferSize, cfg.Instrumentation.FlushIntervalMs)
		app.Hooks().OnShutdown(func() error {
			buffer.Stop()
			return nil
		})
		app.Use(instrument.Middleware(instrument.NewTracer(buffer)))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/api", auth.Middleware(eng, cfg.JWTSecret, cfg.Auth.UserModel))
	auth.RegisterAuthRoutes(app, auth.NewAuthHandler(eng, cfg.JWTSecret, cfg.Auth.UserModel))
	engine.RegisterRoutes(app, engine.NewHandler(eng, cfg.Pagination))
	return app
}
