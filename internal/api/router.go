package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/cardtable/internal/api/handlers"
	"github.com/ramonehamilton/cardtable/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	// WebSocket endpoint (no JSON content-type requirement)
	s.router.Get("/ws", s.wsHub.ServeWs)

	store, sel := s.deps.Store, s.deps.Selectors

	s.router.Route("/api/v1", func(r chi.Router) {
		// Deck routes
		deckHandler := handlers.NewDeckHandler(store, sel)
		r.Route("/decks", func(r chi.Router) {
			r.Get("/", deckHandler.GetDecks)
			r.Post("/", deckHandler.CreateDeck)
			r.Get("/{deckID}", deckHandler.GetDeck)
			r.Patch("/{deckID}", deckHandler.UpdateDeck)
			r.Delete("/{deckID}", deckHandler.DeleteDeck)
			r.Post("/{deckID}/restore", deckHandler.RestoreDeck)
			r.Post("/{deckID}/copy", deckHandler.CopyDeck)
			r.Get("/{deckID}/export", deckHandler.ExportDeck)
			r.Put("/{deckID}/cards/{cardID}/quantity", deckHandler.SetCardQuantity)
		})

		// Card routes
		cardHandler := handlers.NewCardHandler(store)
		r.Route("/cards", func(r chi.Router) {
			r.Post("/", cardHandler.CreateCard)
			r.Get("/{cardID}", cardHandler.GetCard)
			r.Put("/{cardID}", cardHandler.PutCard)
		})
		r.Post("/data-items", cardHandler.UpdateDataItem)

		// Template routes
		templateHandler := handlers.NewTemplateHandler(store)
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.GetTemplates)
			r.Post("/", templateHandler.CreateTemplate)
			r.Get("/{templateID}", templateHandler.GetTemplate)
			r.Put("/{templateID}", templateHandler.PutTemplate)
			r.Delete("/{templateID}", templateHandler.DeleteTemplate)
		})

		// Tabletop routes
		tabletopHandler := handlers.NewTabletopHandler(store, sel)
		r.Route("/tabletops/{tabletopID}", func(r chi.Router) {
			r.Get("/", tabletopHandler.GetTabletop)
			r.Put("/decks", tabletopHandler.SetAvailableDecks)
			r.Post("/reset", tabletopHandler.Reset)
			r.Post("/undo", tabletopHandler.Undo)
			r.Post("/redo", tabletopHandler.Redo)
			r.Post("/draw", tabletopHandler.DrawCards)

			r.Get("/stacks", tabletopHandler.GetStacks)
			r.Post("/stacks", tabletopHandler.AddStack)
			r.Get("/stacks/{stackID}", tabletopHandler.GetStack)
			r.Delete("/stacks/{stackID}", tabletopHandler.RemoveStack)
			r.Post("/stacks/{stackID}/flip", tabletopHandler.FlipStack)
			r.Post("/stacks/{stackID}/shuffle", tabletopHandler.ShuffleStack)

			r.Post("/card-instances", tabletopHandler.AddCardInstance)
			r.Get("/card-instances/{cardInstanceID}", tabletopHandler.GetCardInstance)
			r.Post("/card-instances/{cardInstanceID}/move", tabletopHandler.MoveCardInstance)
			r.Post("/card-instances/{cardInstanceID}/flip", tabletopHandler.FlipCardInstance)
		})

		// Settings routes
		settingsHandler := handlers.NewSettingsHandler(store)
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.GetSettings)
			r.Patch("/", settingsHandler.UpdateSettings)
		})

		// Included decks import
		importHandler := handlers.NewImportHandler(s.deps.Importer)
		r.Route("/import", func(r chi.Router) {
			r.Get("/status", importHandler.GetStatus)
			r.Post("/refresh", importHandler.Refresh)
		})

		// Persistence
		storageHandler := handlers.NewStorageHandler(store, s.deps.Storage)
		r.Route("/storage", func(r chi.Router) {
			r.Get("/status", storageHandler.GetStatus)
			r.Post("/save", storageHandler.Save)
			r.Get("/revisions", storageHandler.GetRevisions)
			r.Post("/revisions/{revisionID}/restore", storageHandler.RestoreRevision)
			r.Get("/backups", storageHandler.GetBackups)
			r.Post("/backups", storageHandler.CreateBackup)
			r.Get("/export", storageHandler.Export)
			r.Post("/import", storageHandler.Import)
		})

		// System routes
		systemHandler := handlers.NewSystemHandler(store, s.deps.Metrics)
		r.Route("/system", func(r chi.Router) {
			r.Get("/version", systemHandler.GetVersion)
			r.Get("/state", systemHandler.GetState)
			r.Get("/metrics", systemHandler.GetMetrics)
		})
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(r.Context()); err != nil {
			response.ServiceUnavailable(w, err)
			return
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "cardtable-api",
		"clients": s.wsHub.ClientCount(),
	})
}
