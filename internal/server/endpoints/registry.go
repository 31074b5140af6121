package endpoints

import (
	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/pgdocker"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DockerManager *pgdocker.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DockerManager: cfg.DockerManager},

		// Processing
		&ProcessEndpoint{},

		// Job endpoints
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&CancelJobEndpoint{},

		// Book endpoints
		&GetBookEndpoint{},
		&ListCharactersEndpoint{},
		&CoverEndpoint{},

		// Chat endpoints
		&AskEndpoint{},
		&CharacterChatEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&ListBookPromptsEndpoint{},
		&SetBookPromptEndpoint{},
		&ClearBookPromptEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},
	}
}

// JobCommands returns endpoints grouped under the "jobs" subcommand.
func JobCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&CancelJobEndpoint{},
	}
}

// BookCommands returns endpoints grouped under the "books" subcommand.
func BookCommands() []api.Endpoint {
	return []api.Endpoint{
		&GetBookEndpoint{},
		&ListCharactersEndpoint{},
		&CoverEndpoint{},
		&AskEndpoint{},
		&CharacterChatEndpoint{},
	}
}

// PromptCommands returns endpoints grouped under the "prompts" subcommand.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&ListBookPromptsEndpoint{},
		&SetBookPromptEndpoint{},
		&ClearBookPromptEndpoint{},
	}
}
