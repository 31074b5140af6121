// Package docs provides generated OpenAPI documentation.
//
// Lectern API
//
//	@title			Lectern API
//	@version		1.0
//	@description	Book ingestion and question answering API: trigger processing, follow jobs and chat about processed books.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/lectern
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				"Bearer <server.api_token>"
package docs

//go:generate swag init -g ../cmd/lectern/serve.go -o ./swagger --parseDependency --parseInternal
