package main

import (
	"context"
	"log"
	"os"

	"tasktracker/internal/auth"
	"tasktracker/internal/domain/errors"
	"tasktracker/internal/server"
	"tasktracker/internal/tasks"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	log.Println("[INFO] starting task tracker service")

	cfg, err := server.ReadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("[ERROR] failed to read config: %v", err)
	}

	stores, err := openBackends(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[ERROR] failed to prepare storage: %v", err)
	}

	api, err := newAPI(cfg, stores)
	if err != nil {
		stores.Close()
		log.Fatalf("[ERROR] failed to initialize API: %v", err)
	}

	go func() {
		if err := api.Start(); err != nil {
			log.Fatalf("[ERROR] server stopped: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout(),
		map[string]gfshutdown.Operation{
			"task-api": func(ctx context.Context) error {
				log.Println("[INFO] graceful shutdown initiated")
				defer stores.Close()
				return api.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("[INFO] service stopped with code %d", exitCode)
	os.Exit(exitCode)
}

func newAPI(cfg *server.Config, stores *backends) (*server.TaskAPI, error) {
	tokens, err := auth.NewTokenGenerator()
	if err != nil {
		return nil, err
	}
	authSvc := auth.NewService(stores.users, stores.sessions, auth.NewPasswordHasher(cfg.BcryptCost), tokens)
	api := server.NewTaskAPI(authSvc, tasks.NewService(stores.tasks), cfg)
	if api == nil {
		return nil, errors.ErrInternalServer
	}
	return api, nil
}
