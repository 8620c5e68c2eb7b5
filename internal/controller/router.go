package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (c controller) Mux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIDMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", c.healthz)

	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", c.createRoom)
		r.Get("/{room-id}", c.roomState)
		r.Get("/{room-id}/mics", c.micStats)
		r.Get("/{room-id}/media", c.contentList)
		r.Get("/{room-id}/media/active", c.activeContent)
		r.Post("/{room-id}/end", c.endRoom)
	})

	r.HandleFunc("/ws/rooms/{room-id}", c.serveRoom)

	return r
}

func (c controller) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
