package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/ai"
	"github.com/promptguild/promptguild/internal/api/recovery"
	"github.com/promptguild/promptguild/internal/auth"
	"github.com/promptguild/promptguild/internal/metrics"
	"github.com/promptguild/promptguild/internal/services"
)

// Deps are the constructed services the router exposes.
type Deps struct {
	Prompts *services.PromptService
	Guilds  *services.GuildService
	AI      *ai.Service
	Auth    *auth.Middleware

	Healthy    func() bool
	Components func() map[string]bool
	Log        zerolog.Logger
}

const (
	promptPath = "/prompts/{promptId:[0-9a-fA-F-]{36}}"
	guildPath  = "/guilds/{guildId:[0-9a-fA-F-]{36}}"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler(d.Healthy, d.Components)
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(d.Auth.Handler)

	prompts := NewPromptHandler(d.Prompts)
	guilds := NewGuildHandler(d.Guilds)
	users := NewUserHandler(d.Guilds)
	aiHandler := NewAIHandler(d.AI)
	live := NewLiveHandler(d.Prompts, d.Guilds, d.Log.With().Str("component", "live").Logger())

	// Prompts: personal scope at the root, shared scope below a guild.
	for _, prefix := range []string{"", guildPath} {
		api.HandleFunc(prefix+"/prompts", prompts.CreatePrompt).Methods(http.MethodPost)
		api.HandleFunc(prefix+"/prompts", prompts.ListPrompts).Methods(http.MethodGet)
		api.HandleFunc(prefix+promptPath, prompts.GetPrompt).Methods(http.MethodGet)
		api.HandleFunc(prefix+promptPath, prompts.UpdatePrompt).Methods(http.MethodPatch)
		api.HandleFunc(prefix+promptPath, prompts.DeletePrompt).Methods(http.MethodDelete)
		api.HandleFunc(prefix+promptPath+"/use", prompts.UsePrompt).Methods(http.MethodPost)
		api.HandleFunc(prefix+promptPath+"/rating", prompts.RatePrompt).Methods(http.MethodPut)
		api.HandleFunc(prefix+promptPath+"/versions", prompts.ListVersions).Methods(http.MethodGet)
	}

	// Guilds
	api.HandleFunc("/guilds", guilds.CreateGuild).Methods(http.MethodPost)
	api.HandleFunc("/guilds", guilds.ListGuilds).Methods(http.MethodGet)
	api.HandleFunc(guildPath, guilds.GetGuild).Methods(http.MethodGet)
	api.HandleFunc(guildPath, guilds.DeleteGuild).Methods(http.MethodDelete)
	api.HandleFunc(guildPath+"/members", guilds.UpdateMembers).Methods(http.MethodPut)
	api.HandleFunc(guildPath+"/invitations", guilds.InviteMember).Methods(http.MethodPost)
	api.HandleFunc(guildPath+"/members/{userId}", guilds.ChangeRole).Methods(http.MethodPatch)
	api.HandleFunc(guildPath+"/members/{userId}", guilds.RemoveMember).Methods(http.MethodDelete)

	// Users
	api.HandleFunc("/me", users.Me).Methods(http.MethodGet)
	api.HandleFunc("/users/lookup", users.LookupUser).Methods(http.MethodGet)

	// AI
	api.HandleFunc("/ai/suggestion", aiHandler.Suggest).Methods(http.MethodPost)

	// Live queries
	api.HandleFunc("/live/prompts", live.LivePrompts).Methods(http.MethodGet)
	api.HandleFunc("/live"+guildPath+"/prompts", live.LivePrompts).Methods(http.MethodGet)
	api.HandleFunc("/live/guilds", live.LiveGuilds).Methods(http.MethodGet)

	return router
}
