package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tannerhall/boardcast/database"
	"github.com/tannerhall/boardcast/events"
	"github.com/tannerhall/boardcast/handlers"
	"github.com/tannerhall/boardcast/services"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	config, err := LoadConfig("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(config.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	// Initialize database
	db, err := database.InitDB(config.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	store := database.NewBoardStore(db)
	tokens := services.NewTokenService(config.JWTSecret)

	// The hub authorizes subscriptions against the same password gate the
	// mutation API uses: a valid token or the board's password.
	hub := services.NewHub(func(req events.SubscribeRequest) error {
		if req.Token != "" {
			joinKey, err := tokens.VerifyBoardToken(req.Token)
			if err == nil && joinKey == req.JoinKey {
				_, err := store.Get(req.JoinKey)
				return err
			}
		}
		_, err := store.GetWithPassword(req.JoinKey, req.Password)
		return err
	})
	go hub.Run()

	mutations := services.NewMutationService(store, hub)

	boardHandler := handlers.NewBoardHandler(mutations, tokens)
	wsHandler := handlers.NewWSHandler(hub)
	authMiddleware := handlers.NewAuthMiddleware(tokens)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Auth)

	api.HandleFunc("/boards", boardHandler.CreateBoard).Methods("POST")
	api.HandleFunc("/boards/{key}", boardHandler.GetBoard).Methods("GET")
	api.HandleFunc("/boards/{key}/title", boardHandler.RenameBoard).Methods("PUT")
	api.HandleFunc("/boards/{key}/token", boardHandler.IssueToken).Methods("POST")

	api.HandleFunc("/boards/{key}/columns", boardHandler.AddColumn).Methods("POST")
	api.HandleFunc("/boards/{key}/columns/{columnID}", boardHandler.RemoveColumn).Methods("DELETE")
	api.HandleFunc("/boards/{key}/columns/{columnID}/heading", boardHandler.RenameColumn).Methods("PUT")

	api.HandleFunc("/boards/{key}/columns/{columnID}/cards", boardHandler.AddCard).Methods("POST")
	api.HandleFunc("/boards/{key}/columns/{columnID}/cards/{cardID}", boardHandler.RemoveCard).Methods("DELETE")
	api.HandleFunc("/boards/{key}/cards/{cardID}", boardHandler.EditCard).Methods("PATCH")
	api.HandleFunc("/boards/{key}/cards/{cardID}/reposition", boardHandler.RepositionCard).Methods("POST")

	api.HandleFunc("/boards/{key}/tags", boardHandler.AddTag).Methods("POST")
	api.HandleFunc("/boards/{key}/tags/{title}", boardHandler.RemoveTag).Methods("DELETE")
	api.HandleFunc("/boards/{key}/tags/{title}", boardHandler.EditTag).Methods("PATCH")

	api.HandleFunc("/boards/{key}/presets", boardHandler.AddPreset).Methods("POST")
	api.HandleFunc("/boards/{key}/presets/{name}", boardHandler.RemovePreset).Methods("DELETE")
	api.HandleFunc("/boards/{key}/presets/{name}", boardHandler.EditPreset).Methods("PATCH")
	api.HandleFunc("/boards/{key}/presets/{name}/apply", boardHandler.ApplyPreset).Methods("POST")

	api.HandleFunc("/ws", wsHandler.HandleWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Board-Password"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         config.Addr,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", config.Addr).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
