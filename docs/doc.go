// Package docs provides the OpenAPI documentation served at /swagger.json.
//
// Songshelf API
//
//	@title			Songshelf API
//	@version		1.0
//	@description	Lineage monitor and reprocessing tracker for the song extraction pipeline.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/songshelf
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/songshelf/serve.go -o . --outputTypes go --parseDependency --parseInternal
